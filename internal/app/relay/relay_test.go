package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chatroom/internal/app/chat"
)

type published struct {
	subject string
	data    string
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	fail bool
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail {
		p.fail = false
		return errors.New("nats: connection closed")
	}
	p.msgs = append(p.msgs, published{subject, string(data)})
	return nil
}

func (p *fakePublisher) snapshot() []published {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]published(nil), p.msgs...)
}

func startRelay(t *testing.T, hub *chat.Hub, pub Publisher) chan error {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- New(hub, pub, "").Run(context.Background()) }()

	deadline := time.Now().Add(time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("relay did not subscribe")
		}
		time.Sleep(2 * time.Millisecond)
	}
	return done
}

func waitClosed(t *testing.T, hub *chat.Hub, done chan error) {
	t.Helper()

	hub.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on hub close", err)
		}
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after hub close")
	}
}

func TestRelayForwardsEvents(t *testing.T) {
	hub := chat.NewHub(16)
	pub := &fakePublisher{}
	done := startRelay(t, hub, pub)

	hub.Publish(chat.UserJoined{Username: "alice", Timestamp: 1})
	hub.Publish(chat.ChatMessage{Username: "alice", Text: "hi", Timestamp: 2, Kind: chat.KindUser})

	waitClosed(t, hub, done)

	want := []published{
		{"chatroom.events.user-joined", `{"type":"user-joined","username":"alice","timestamp":1}`},
		{"chatroom.events.message", `{"type":"message","username":"alice","message":"hi","timestamp":2,"type":"user"}`},
	}

	got := pub.snapshot()
	if len(got) != len(want) {
		t.Fatalf("published %d messages, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRelaySkipsFailedPublish(t *testing.T) {
	hub := chat.NewHub(16)
	pub := &fakePublisher{fail: true}
	done := startRelay(t, hub, pub)

	hub.Publish(chat.Typing{Username: "lost"})
	hub.Publish(chat.Typing{Username: "kept"})

	waitClosed(t, hub, done)

	got := pub.snapshot()
	if len(got) != 1 || got[0].data != `{"type":"typing","username":"kept"}` {
		t.Errorf("published = %+v, want only the second event", got)
	}
}

func TestRelayStopsOnCancel(t *testing.T) {
	hub := chat.NewHub(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(hub, &fakePublisher{}, "custom").Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("relay did not stop on cancel")
	}
}

func TestRelaySubject(t *testing.T) {
	r := New(chat.NewHub(1), &fakePublisher{}, "room.tap")

	if got := r.Subject(chat.TypeUserLeft); got != "room.tap.user-left" {
		t.Errorf("Subject() = %q", got)
	}
}
