package eventbus

import (
	"context"
	"testing"
	"time"
)

func TestHubFiltersBySession(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	all := h.Subscribe(ctx, 4, "")
	only := h.Subscribe(ctx, 4, "s1")

	h.Publish(Event{Type: TypeClockUpdated, SessionID: "s2"})
	h.Publish(Event{Type: TypeClockUpdated, SessionID: "s1"})

	if got := (<-all).SessionID; got != "s2" {
		t.Fatalf("all[0]=%q, want s2", got)
	}
	if got := (<-all).SessionID; got != "s1" {
		t.Fatalf("all[1]=%q, want s1", got)
	}
	evt := <-only
	if evt.SessionID != "s1" || evt.Timestamp == 0 {
		t.Fatalf("filtered event=%+v", evt)
	}
	select {
	case extra := <-only:
		t.Fatalf("unexpected event %+v", extra)
	default:
	}
}

func TestHubDropsForSlowConsumer(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := h.Subscribe(ctx, 1, "")
	h.Publish(Event{Type: TypeMessageCreated})
	h.Publish(Event{Type: TypeMessageCreated}) // 缓冲已满，丢弃

	<-ch
	select {
	case <-ch:
		t.Fatalf("second event should have been dropped")
	default:
	}
}

func TestHubClosesOnCancel(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	ch := h.Subscribe(ctx, 1, "")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed after cancel")
	}
	if n := h.Subscribers(); n != 0 {
		t.Fatalf("subscribers=%d, want 0", n)
	}
}

func TestNilHubPublish(t *testing.T) {
	var h *Hub
	h.Publish(Event{Type: TypeSessionCreated})
}
