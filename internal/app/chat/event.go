/*
Package chat contains the core logic of the chat room.

This file defines the wire events: the closed set of server events published on the hub,
the closed set of client events read from connections, and their JSON envelopes.
*/
package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"chatroom/internal/pkg/errs"
)

// Envelope tags shared by both directions of the protocol.
const (
	TypeJoin       = "join"
	TypeMessage    = "message"
	TypeTyping     = "typing"
	TypeStopTyping = "stop-typing"
	TypeUserList   = "user-list"
	TypeUserJoined = "user-joined"
	TypeUserLeft   = "user-left"
	TypeError      = "error"
)

// MessageKind distinguishes server-generated chat messages from user messages.
type MessageKind string

const (
	KindSystem MessageKind = "system"
	KindUser   MessageKind = "user"
)

// SystemUsername is the author shown on system chat messages.
const SystemUsername = "System"

// ErrMalformedPayload wraps every inbound frame decoding failure.
var ErrMalformedPayload = errs.NewError(errs.ErrMalformedPayload)

// Event is a server-to-client event. The set of implementations is closed.
type Event interface {
	// Type returns the envelope tag.
	Type() string

	event()
}

// UserList carries the usernames currently in the room.
type UserList struct {
	Users []string
}

// ChatMessage is a chat line, either from a user or from the server.
type ChatMessage struct {
	Username  string
	Text      string
	Timestamp uint64
	Kind      MessageKind
}

// UserJoined announces a successful join.
type UserJoined struct {
	Username  string
	Timestamp uint64
}

// UserLeft announces the departure of a joined user.
type UserLeft struct {
	Username  string
	Timestamp uint64
}

// Typing reports that a user started typing.
type Typing struct {
	Username string
}

// StopTyping reports that a user stopped typing.
type StopTyping struct {
	Username string
}

// Error is sent privately to a connection whose request was rejected.
type Error struct {
	Text string
}

func (UserList) Type() string    { return TypeUserList }
func (ChatMessage) Type() string { return TypeMessage }
func (UserJoined) Type() string  { return TypeUserJoined }
func (UserLeft) Type() string    { return TypeUserLeft }
func (Typing) Type() string      { return TypeTyping }
func (StopTyping) Type() string  { return TypeStopTyping }
func (Error) Type() string       { return TypeError }

func (UserList) event()    {}
func (ChatMessage) event() {}
func (UserJoined) event()  {}
func (UserLeft) event()    {}
func (Typing) event()      {}
func (StopTyping) event()  {}
func (Error) event()       {}

// MarshalJSON implements json.Marshaler.
func (e UserList) MarshalJSON() ([]byte, error) {
	users := e.Users
	if users == nil {
		users = []string{}
	}
	return json.Marshal(struct {
		Type  string   `json:"type"`
		Users []string `json:"users"`
	}{TypeUserList, users})
}

// MarshalJSON implements json.Marshaler. The output carries two "type" keys:
// the envelope tag first, then the message kind.
func (e ChatMessage) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":"message","username":`)
	if err := writeJSONString(&buf, e.Username); err != nil {
		return nil, err
	}
	buf.WriteString(`,"message":`)
	if err := writeJSONString(&buf, e.Text); err != nil {
		return nil, err
	}
	buf.WriteString(`,"timestamp":`)
	buf.WriteString(strconv.FormatUint(e.Timestamp, 10))
	buf.WriteString(`,"type":`)
	if err := writeJSONString(&buf, string(e.Kind)); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler.
func (e UserJoined) MarshalJSON() ([]byte, error) {
	return marshalPresence(TypeUserJoined, e.Username, e.Timestamp)
}

// MarshalJSON implements json.Marshaler.
func (e UserLeft) MarshalJSON() ([]byte, error) {
	return marshalPresence(TypeUserLeft, e.Username, e.Timestamp)
}

// MarshalJSON implements json.Marshaler.
func (e Typing) MarshalJSON() ([]byte, error) {
	return marshalTyping(TypeTyping, e.Username)
}

// MarshalJSON implements json.Marshaler.
func (e StopTyping) MarshalJSON() ([]byte, error) {
	return marshalTyping(TypeStopTyping, e.Username)
}

// MarshalJSON implements json.Marshaler.
func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{TypeError, e.Text})
}

func marshalPresence(tag, username string, ts uint64) ([]byte, error) {
	return json.Marshal(struct {
		Type      string `json:"type"`
		Username  string `json:"username"`
		Timestamp uint64 `json:"timestamp"`
	}{tag, username, ts})
}

func marshalTyping(tag, username string) ([]byte, error) {
	return json.Marshal(struct {
		Type     string `json:"type"`
		Username string `json:"username"`
	}{tag, username})
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// EncodeEvent serializes ev into a text frame payload.
func EncodeEvent(ev Event) ([]byte, error) {
	if ev == nil {
		return nil, errors.New("nil event")
	}
	return json.Marshal(ev)
}

// ClientEvent is a client-to-server event. The set of implementations is closed.
type ClientEvent interface {
	clientEvent()
}

// Join asks to claim a username.
type Join struct {
	Username string
}

// Message is a chat line sent by the client.
type Message struct {
	Text string
}

// TypingStart signals that the client started typing.
type TypingStart struct{}

// TypingStop signals that the client stopped typing.
type TypingStop struct{}

func (Join) clientEvent()        {}
func (Message) clientEvent()     {}
func (TypingStart) clientEvent() {}
func (TypingStop) clientEvent()  {}

// inboundEnvelope is the union of all client envelope fields.
type inboundEnvelope struct {
	Type     string  `json:"type"`
	Username *string `json:"username"`
	Message  *string `json:"message"`
}

// DecodeClientEvent parses one inbound text frame.
// Invalid JSON, an unknown type, or a missing required field yields an error wrapping ErrMalformedPayload.
func DecodeClientEvent(data []byte) (ClientEvent, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch env.Type {
	case TypeJoin:
		if env.Username == nil {
			return nil, fmt.Errorf("%w: join without username", ErrMalformedPayload)
		}
		return Join{Username: *env.Username}, nil

	case TypeMessage:
		if env.Message == nil {
			return nil, fmt.Errorf("%w: message without text", ErrMalformedPayload)
		}
		return Message{Text: *env.Message}, nil

	case TypeTyping:
		return TypingStart{}, nil

	case TypeStopTyping:
		return TypingStop{}, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedPayload)

	default:
		return nil, fmt.Errorf("%w: unsupported type %q", ErrMalformedPayload, env.Type)
	}
}
