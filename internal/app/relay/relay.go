/*
Package relay mirrors chat room events to NATS.

The relay is an ordinary hub subscriber: every event published in the room is encoded with
the same wire format sessions use and published on "<subject>.<event type>", so external
consumers can tap the room without joining it. Delivery is best effort.
*/
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"chatroom/internal/app/chat"
	"chatroom/internal/pkg/logx"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "chatroom.events"

// Publisher sends one message to a subject. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Relay forwards hub events to a Publisher.
type Relay struct {
	hub     *chat.Hub
	pub     Publisher
	subject string

	logger zerolog.Logger
}

// New returns a relay publishing hub events under subject.
func New(hub *chat.Hub, pub Publisher, subject string) *Relay {
	if subject == "" {
		subject = DefaultSubject
	}

	return &Relay{
		hub:     hub,
		pub:     pub,
		subject: subject,
		logger:  logx.Component("relay"),
	}
}

// Subject returns the full subject an event of the given type is published on.
func (r *Relay) Subject(eventType string) string {
	return r.subject + "." + eventType
}

// Run subscribes to the hub and relays events until ctx is done or the hub closes.
// Publish failures are logged and the event is skipped.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.hub.Subscribe()
	defer sub.Close()

	r.logger.Info().Str("subject", r.subject).Msg("Event relay started.")

	for {
		ev, err := sub.Recv(ctx)
		if err != nil {
			if errors.Is(err, chat.ErrSubscriptionClosed) || errors.Is(err, context.Canceled) {
				r.logger.Info().Msg("Event relay stopped.")
				return nil
			}
			return fmt.Errorf("relay receive: %w", err)
		}

		if dropped := sub.Lagged(); dropped > 0 {
			r.logger.Warn().Uint64("dropped", dropped).Msg("Relay lagged behind the hub, events skipped.")
		}

		data, err := chat.EncodeEvent(ev)
		if err != nil {
			r.logger.Error().Err(err).Str("event_type", ev.Type()).Msg("Failed to encode event for relay.")
			continue
		}

		subject := r.Subject(ev.Type())
		if err := r.pub.Publish(subject, data); err != nil {
			r.logger.Error().Err(err).Str("subject", subject).Msg("Failed to publish event to NATS")
		}
	}
}

// Connect dials the NATS server at url with reconnect handling that logs state changes.
func Connect(url, name string) (*nats.Conn, error) {
	logger := logx.Component("nats")

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("Disconnected from NATS.")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrlRedacted()).Msg("Reconnected to NATS.")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info().Msg("NATS connection closed.")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}

	logger.Info().Str("url", nc.ConnectedUrlRedacted()).Msg("Successfully connected to NATS")
	return nc, nil
}
