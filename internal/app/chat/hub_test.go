package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func recvWithin(t *testing.T, sub *Subscription, d time.Duration) Event {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	ev, err := sub.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv() error: %v", err)
	}
	return ev
}

func TestNewHubDefaultCapacity(t *testing.T) {
	hub := NewHub(0)

	if hub.capacity != DefaultHubBufferSize {
		t.Errorf("capacity = %d, want %d", hub.capacity, DefaultHubBufferSize)
	}
	if hub.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", hub.Subscribers())
	}
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(4)

	done := make(chan struct{})
	go func() {
		hub.Publish(Typing{Username: "nobody"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish() blocked with zero subscribers")
	}
}

func TestHubFanoutPreservesOrder(t *testing.T) {
	hub := NewHub(16)

	subs := []*Subscription{hub.Subscribe(), hub.Subscribe(), hub.Subscribe()}

	for i := 0; i < 5; i++ {
		hub.Publish(ChatMessage{Username: "alice", Text: fmt.Sprintf("m%d", i), Kind: KindUser})
	}

	for n, sub := range subs {
		for i := 0; i < 5; i++ {
			ev := recvWithin(t, sub, time.Second)
			msg, ok := ev.(ChatMessage)
			if !ok {
				t.Fatalf("sub %d: got %T, want ChatMessage", n, ev)
			}
			if want := fmt.Sprintf("m%d", i); msg.Text != want {
				t.Errorf("sub %d: event %d = %q, want %q", n, i, msg.Text, want)
			}
		}
	}
}

func TestHubSubscriberOnlySeesLaterEvents(t *testing.T) {
	hub := NewHub(8)

	hub.Publish(Typing{Username: "early"})
	sub := hub.Subscribe()
	hub.Publish(Typing{Username: "late"})

	ev := recvWithin(t, sub, time.Second)
	if ev.(Typing).Username != "late" {
		t.Errorf("got %+v, want the event published after Subscribe", ev)
	}
	if sub.buffered() != 0 {
		t.Errorf("buffered() = %d, want 0", sub.buffered())
	}
}

func TestHubSlowSubscriberDropsOldest(t *testing.T) {
	hub := NewHub(3)
	slow := hub.Subscribe()

	for i := 0; i < 5; i++ {
		hub.Publish(ChatMessage{Text: fmt.Sprintf("m%d", i)})
	}

	if got := slow.Lagged(); got != 2 {
		t.Errorf("Lagged() = %d, want 2", got)
	}
	if got := slow.Lagged(); got != 0 {
		t.Errorf("Lagged() after reset = %d, want 0", got)
	}

	for _, want := range []string{"m2", "m3", "m4"} {
		ev := recvWithin(t, slow, time.Second)
		if got := ev.(ChatMessage).Text; got != want {
			t.Errorf("Recv() = %q, want %q", got, want)
		}
	}
}

func TestHubSlowSubscriberDoesNotStallOthers(t *testing.T) {
	hub := NewHub(2)
	_ = hub.Subscribe() // never read
	fast := hub.Subscribe()

	var got []string
	var mu sync.Mutex
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			ev, err := fast.Recv(context.Background())
			if err != nil {
				return
			}
			mu.Lock()
			got = append(got, ev.(ChatMessage).Text)
			mu.Unlock()
		}
	}()

	published := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(ChatMessage{Text: fmt.Sprintf("m%d", i)})
			// give the fast reader a chance to keep pace with a tiny buffer
			time.Sleep(100 * time.Microsecond)
		}
		close(published)
	}()

	select {
	case <-published:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher stalled behind a slow subscriber")
	}

	hub.Close()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 {
		t.Fatal("fast subscriber received nothing")
	}
	if got[len(got)-1] != "m99" {
		t.Errorf("fast subscriber last event = %q, want m99", got[len(got)-1])
	}
}

func TestHubConcurrentPublishersSameOrderForAll(t *testing.T) {
	hub := NewHub(1000)
	a := hub.Subscribe()
	b := hub.Subscribe()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				hub.Publish(ChatMessage{Username: fmt.Sprintf("p%d", p), Text: fmt.Sprintf("%d", i)})
			}
		}(p)
	}
	wg.Wait()

	for i := 0; i < 200; i++ {
		ea := recvWithin(t, a, time.Second)
		eb := recvWithin(t, b, time.Second)
		if ea != eb {
			t.Fatalf("event %d differs between subscribers: %+v vs %+v", i, ea, eb)
		}
	}
}

func TestSubscriptionRecvHonoursContext(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := sub.Recv(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Recv() error = %v, want DeadlineExceeded", err)
	}
}

func TestSubscriptionCloseWakesReceiver(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe()

	errCh := make(chan error, 1)
	go func() {
		_, err := sub.Recv(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	sub.Close()
	sub.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrSubscriptionClosed) {
			t.Errorf("Recv() error = %v, want ErrSubscriptionClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close() did not wake Recv()")
	}

	if hub.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d after Close, want 0", hub.Subscribers())
	}

	hub.Publish(Typing{Username: "ghost"})
	if sub.buffered() != 0 {
		t.Error("closed subscription should not buffer new events")
	}
}

func TestSubscriptionDrainsBufferAfterClose(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe()

	hub.Publish(Typing{Username: "alice"})
	sub.Close()

	if ev := recvWithin(t, sub, time.Second); ev.(Typing).Username != "alice" {
		t.Errorf("Recv() = %+v", ev)
	}
	if _, err := sub.Recv(context.Background()); !errors.Is(err, ErrSubscriptionClosed) {
		t.Errorf("Recv() error = %v, want ErrSubscriptionClosed", err)
	}
}

func TestHubClose(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe()

	hub.Close()
	hub.Close()

	if _, err := sub.Recv(context.Background()); !errors.Is(err, ErrSubscriptionClosed) {
		t.Errorf("Recv() error = %v, want ErrSubscriptionClosed", err)
	}

	late := hub.Subscribe()
	hub.Publish(Typing{Username: "ghost"})
	if _, err := late.Recv(context.Background()); !errors.Is(err, ErrSubscriptionClosed) {
		t.Errorf("late Recv() error = %v, want ErrSubscriptionClosed", err)
	}
	late.Close()
}
