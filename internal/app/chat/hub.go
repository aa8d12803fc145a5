/*
Package chat contains the core logic of the chat room.

This file defines the Hub, the single publish channel every session subscribes to.
Each Subscription owns a fixed-size ring buffer; when a subscriber falls behind, its
oldest buffered events are overwritten so publishers never wait on a slow reader.
*/
package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"chatroom/internal/pkg/logx"
)

// DefaultHubBufferSize is the per-subscriber capacity used when none is configured.
const DefaultHubBufferSize = 1000

// ErrSubscriptionClosed is returned by Recv once the subscription or the hub is closed
// and every buffered event has been consumed.
var ErrSubscriptionClosed = errors.New("chat: subscription closed")

// Hub fans every published event out to all active subscriptions.
type Hub struct {
	// mu serializes publishes so all subscribers observe one global order,
	// and guards subs, nextID and closed.
	mu sync.Mutex

	subs   map[uint64]*Subscription
	nextID uint64
	closed bool

	// capacity is the ring buffer size of each new subscription.
	capacity int

	logger zerolog.Logger
}

// NewHub returns a hub whose subscriptions buffer up to capacity events each.
// A non-positive capacity selects DefaultHubBufferSize.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultHubBufferSize
	}

	return &Hub{
		subs:     make(map[uint64]*Subscription),
		capacity: capacity,
		logger:   logx.Component("hub"),
	}
}

// Publish delivers ev to every current subscriber without blocking.
// With no subscribers, or after Close, the event is dropped.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		h.logger.Debug().Str("event_type", ev.Type()).Msg("Publish after hub close, event dropped.")
		return
	}

	for _, sub := range h.subs {
		sub.push(ev)
	}
}

// Subscribe registers a new subscriber that sees every event published from now on.
// Subscribing to a closed hub returns an already closed subscription.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscription{
		hub:    h,
		buf:    make([]Event, h.capacity),
		notify: make(chan struct{}, 1),
	}

	if h.closed {
		sub.closed = true
		return sub
	}

	sub.id = h.nextID
	h.nextID++
	h.subs[sub.id] = sub

	return sub
}

// Subscribers returns the number of attached subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

// Close detaches and closes every subscription. It is safe to call more than once.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[uint64]*Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.markClosed()
	}

	h.logger.Info().Int("subscribers", len(subs)).Msg("Hub closed.")
}

func (h *Hub) detach(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Subscription is one consumer cursor on the hub.
type Subscription struct {
	hub *Hub
	id  uint64

	// mu is held only for O(1) buffer operations, never while waiting.
	mu sync.Mutex

	// buf is a ring of len(buf) slots; head indexes the oldest event, n counts live ones.
	buf  []Event
	head int
	n    int

	// lagged counts events overwritten since the last call to Lagged.
	lagged uint64

	closed bool

	// notify holds a token while events may be pending.
	notify chan struct{}
}

// push appends ev, overwriting the oldest event if the ring is full.
func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	tail := (s.head + s.n) % len(s.buf)
	s.buf[tail] = ev

	if s.n == len(s.buf) {
		s.head = (s.head + 1) % len(s.buf)
		s.lagged++
	} else {
		s.n++
	}
	s.mu.Unlock()

	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// pop removes the oldest event. ok is false when the buffer is empty.
func (s *Subscription) pop() (ev Event, ok bool, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.n == 0 {
		return nil, false, s.closed
	}

	ev = s.buf[s.head]
	s.buf[s.head] = nil
	s.head = (s.head + 1) % len(s.buf)
	s.n--

	return ev, true, s.closed
}

// Recv returns the next unseen event in publish order, blocking until one is
// available, ctx is done, or the subscription is closed and drained.
func (s *Subscription) Recv(ctx context.Context) (Event, error) {
	for {
		ev, ok, closed := s.pop()
		if ok {
			return ev, nil
		}
		if closed {
			return nil, ErrSubscriptionClosed
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Lagged returns how many events were dropped for this subscriber since the
// previous call, and resets the counter.
func (s *Subscription) Lagged() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.lagged
	s.lagged = 0
	return n
}

// buffered returns the number of unconsumed events.
func (s *Subscription) buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.n
}

// Close detaches the subscription from the hub. Buffered events remain readable.
// It is safe to call more than once.
func (s *Subscription) Close() {
	if s.markClosed() {
		s.hub.detach(s.id)
	}
}

// markClosed flags the subscription closed and wakes a blocked Recv.
// It reports whether this call performed the transition.
func (s *Subscription) markClosed() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	s.mu.Unlock()

	s.wake()
	return true
}
