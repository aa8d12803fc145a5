/*
Package chat contains the core logic of the chat room.

This file defines the Session, the live state of one WebSocket connection. A session runs
three duties under one errgroup: the reader drives the join/message state machine, the
forwarder copies hub events into the private mailbox, and the writer drains the mailbox to
the connection. The first duty to stop cancels the others, and Close releases the joined
user exactly once.
*/
package chat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"chatroom/internal/app/user"
	"chatroom/internal/pkg/clock"
	"chatroom/internal/pkg/errs"
	"chatroom/internal/pkg/logx"
	"chatroom/internal/pkg/randx"
)

const (
	// DefaultWriteWait is the time allowed to write one frame to the peer.
	DefaultWriteWait = 10 * time.Second

	// DefaultPongWait is how long the peer may stay silent before the connection is dropped.
	DefaultPongWait = 60 * time.Second

	// MinPongWait is the smallest enabled heartbeat wait; shorter positive values are raised to it.
	MinPongWait = 10 * time.Millisecond

	// DefaultMaxMessageSize is the maximum size in bytes of an inbound frame.
	// A larger frame closes the session with status 1009.
	DefaultMaxMessageSize = 64 << 10

	// DefaultSendQueueSize is the capacity of a session's outbound mailbox.
	DefaultSendQueueSize = 256
)

var (
	// ErrAlreadyJoined is sent to a connection that repeats a successful join.
	ErrAlreadyJoined = errs.NewError(errs.ErrAlreadyJoined)

	// ErrSessionClosed is returned by operations attempted after Close.
	ErrSessionClosed = errors.New("chat: session closed")
)

// Conn is the transport a session runs on. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// SessionConfig tunes per-connection limits and the heartbeat.
type SessionConfig struct {
	// SendQueueSize is the mailbox capacity.
	SendQueueSize int

	// MaxMessageSize limits inbound frames, in bytes. Exceeding it ends the session.
	MaxMessageSize int64

	// PongWait is the read deadline refreshed by every pong. Zero disables the heartbeat,
	// positive values below MinPongWait are raised to it.
	PongWait time.Duration

	// WriteWait bounds each frame write. Zero means no write deadline.
	WriteWait time.Duration
}

// DefaultSessionConfig returns the production defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SendQueueSize:  DefaultSendQueueSize,
		MaxMessageSize: DefaultMaxMessageSize,
		PongWait:       DefaultPongWait,
		WriteWait:      DefaultWriteWait,
	}
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = DefaultSendQueueSize
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.PongWait < 0 {
		c.PongWait = 0
	}
	if c.PongWait > 0 && c.PongWait < MinPongWait {
		c.PongWait = MinPongWait
	}
	return c
}

// pingPeriod must stay below PongWait so a healthy peer always answers in time.
func (c SessionConfig) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// Session is the state of one connected client.
type Session struct {
	// ID correlates the log lines of this connection.
	ID string

	conn       Conn
	remoteAddr string

	registry *Registry
	hub      *Hub
	clock    clock.Clock
	cfg      SessionConfig

	// sub is this session's hub cursor, created with the session.
	sub *Subscription

	// send is the outbound mailbox of encoded frames, drained by the writer in order.
	send chan []byte

	// mu guards user and closed.
	mu     sync.Mutex
	user   *user.User
	closed bool

	closeOnce     sync.Once
	connCloseOnce sync.Once

	logger zerolog.Logger
}

// NewSession creates an unauthenticated session for conn and subscribes it to hub.
func NewSession(conn Conn, remoteAddr string, registry *Registry, hub *Hub, clk clock.Clock, cfg SessionConfig) *Session {
	cfg = cfg.withDefaults()
	id := randx.MustConnID()

	return &Session{
		ID:         id,
		conn:       conn,
		remoteAddr: remoteAddr,
		registry:   registry,
		hub:        hub,
		clock:      clk,
		cfg:        cfg,
		sub:        hub.Subscribe(),
		send:       make(chan []byte, cfg.SendQueueSize),
		logger: logx.Logger().With().
			Str("component", "session").
			Str("conn_id", id).
			Str("remote_ip", logx.AnonymizeIP(remoteAddr)).
			Logger(),
	}
}

// Username returns the joined username, or "" before a successful join.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return ""
	}
	return s.user.Username
}

// Run drives the session until the connection ends or ctx is cancelled, then
// tears it down. The returned error describes why the session ended.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	s.logger.Debug().Msg("Session started.")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { return s.forwardLoop(gctx) })
	g.Go(func() error { return s.writeLoop(gctx) })

	// unblocks the reader, which cannot observe gctx while inside ReadMessage
	g.Go(func() error {
		<-gctx.Done()
		s.closeConn()
		return nil
	})

	err := g.Wait()

	s.logger.Debug().Err(err).Msg("Session duties stopped.")
	return err
}

// Close releases the session: the hub subscription and connection are closed, the
// joined user is removed from the registry and its departure is published.
// Only the first call has any effect.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.sub.Close()
		s.closeConn()

		s.mu.Lock()
		u := s.user
		s.user = nil
		s.closed = true
		s.mu.Unlock()

		if u == nil {
			s.logger.Debug().Msg("Unauthenticated session closed.")
			return
		}

		removed, ok := s.registry.Remove(u.ID)
		if !ok {
			s.logger.Warn().Str("username", u.Username).Msg("Joined user was already missing from the registry.")
			return
		}

		s.hub.Publish(UserLeft{Username: removed.Username, Timestamp: s.clock.NowMillis()})
		s.logger.Info().Str("username", removed.Username).Int("online", s.registry.Len()).Msg("User left the chat.")
	})
}

func (s *Session) closeConn() {
	s.connCloseOnce.Do(func() {
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Debug().Err(err).Msg("Connection close error.")
		}
	})
}

// readLoop pulls frames from the connection and feeds them to the state machine.
func (s *Session) readLoop(ctx context.Context) error {
	s.conn.SetReadLimit(s.cfg.MaxMessageSize)

	if s.cfg.PongWait > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		})
	}

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.logReadError(ctx, err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}

		if s.cfg.PongWait > 0 {
			if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait)); err != nil {
				return fmt.Errorf("set read deadline: %w", err)
			}
		}

		if msgType != websocket.TextMessage {
			s.logger.Debug().Int("message_type", msgType).Msg("Ignoring non-text frame.")
			continue
		}

		if err := s.HandleFrame(ctx, data); err != nil {
			return err
		}
	}
}

func (s *Session) logReadError(ctx context.Context, err error) {
	switch {
	case ctx.Err() != nil, errors.Is(err, net.ErrClosed):
		s.logger.Debug().Err(err).Msg("Read stopped by session teardown.")
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure):
		s.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
	default:
		s.logger.Debug().Err(err).Msg("Client closed the connection.")
	}
}

// HandleFrame decodes one inbound text frame and applies it to the session.
// Malformed frames are logged and ignored. A non-nil error means the session must end.
func (s *Session) HandleFrame(ctx context.Context, data []byte) error {
	ev, err := DecodeClientEvent(data)
	if err != nil {
		s.logger.Warn().Err(err).
			Int("frame_bytes", len(data)).
			Msg("Client sent malformed payload")
		return nil
	}

	return s.HandleEvent(ctx, ev)
}

// HandleEvent applies one client event to the session state machine.
func (s *Session) HandleEvent(ctx context.Context, ev ClientEvent) error {
	switch ev := ev.(type) {
	case Join:
		return s.handleJoin(ctx, ev.Username)

	case Message:
		if name := s.Username(); name != "" {
			s.hub.Publish(ChatMessage{
				Username:  name,
				Text:      ev.Text,
				Timestamp: s.clock.NowMillis(),
				Kind:      KindUser,
			})
		}

	case TypingStart:
		if name := s.Username(); name != "" {
			s.hub.Publish(Typing{Username: name})
		}

	case TypingStop:
		if name := s.Username(); name != "" {
			s.hub.Publish(StopTyping{Username: name})
		}

	default:
		s.logger.Warn().Str("event", fmt.Sprintf("%T", ev)).Msg("Unhandled client event")
	}

	return nil
}

func (s *Session) handleJoin(ctx context.Context, candidate string) error {
	if s.Username() != "" {
		return s.sendError(ctx, ErrAlreadyJoined)
	}

	u, err := s.registry.TryAdd(candidate)
	if err != nil {
		s.logger.Info().Err(err).Str("candidate", candidate).Msg("Join rejected.")
		return s.sendError(ctx, err)
	}

	if !s.bindUser(u) {
		s.registry.Remove(u.ID)
		return ErrSessionClosed
	}

	s.logger.Info().Str("username", u.Username).Int("online", s.registry.Len()).Msg("User joined the chat.")

	err = s.enqueue(ctx, UserList{Users: s.registry.Usernames()})
	if err == nil {
		err = s.enqueue(ctx, ChatMessage{
			Username:  SystemUsername,
			Text:      fmt.Sprintf("Welcome %s to the chat room!", u.Username),
			Timestamp: s.clock.NowMillis(),
			Kind:      KindSystem,
		})
	}

	// published even if the private replies failed, so the UserLeft from Close is always paired
	s.hub.Publish(UserJoined{Username: u.Username, Timestamp: s.clock.NowMillis()})

	return err
}

// bindUser records u as the session's user unless the session is already closed.
func (s *Session) bindUser(u user.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.user = &u
	return true
}

func (s *Session) sendError(ctx context.Context, err error) error {
	return s.enqueue(ctx, Error{Text: errs.MessageOf(err)})
}

// enqueue encodes ev into the mailbox, waiting for room until ctx ends.
// Encoding failures skip the event for this session only.
func (s *Session) enqueue(ctx context.Context, ev Event) error {
	data, err := EncodeEvent(ev)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", ev.Type()).Msg("Failed to encode event, skipping.")
		return nil
	}

	select {
	case s.send <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// forwardLoop copies hub events into the mailbox.
func (s *Session) forwardLoop(ctx context.Context) error {
	for {
		ev, err := s.sub.Recv(ctx)
		if err != nil {
			return fmt.Errorf("forward: %w", err)
		}

		if dropped := s.sub.Lagged(); dropped > 0 {
			s.logger.Warn().Uint64("dropped", dropped).Msg("Session lagged behind the hub, events skipped.")
		}

		if err := s.enqueue(ctx, ev); err != nil {
			return err
		}
	}
}

// writeLoop drains the mailbox to the connection and sends heartbeat pings.
func (s *Session) writeLoop(ctx context.Context) error {
	var ping <-chan time.Time
	if s.cfg.PongWait > 0 {
		ticker := time.NewTicker(s.cfg.pingPeriod())
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case frame := <-s.send:
			if err := s.write(websocket.TextMessage, frame); err != nil {
				return err
			}

		case <-ping:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (s *Session) write(messageType int, data []byte) error {
	if s.cfg.WriteWait > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait)); err != nil {
			s.logger.Error().Err(err).Msg("Failed to set write deadline")
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	if err := s.conn.WriteMessage(messageType, data); err != nil {
		s.logger.Debug().Err(err).Int("message_type", messageType).Msg("Error writing message")
		return fmt.Errorf("write: %w", err)
	}

	return nil
}
