package eventbus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: TypeCached, Data: CachedEvent{ID: 1, RunID: "r"}})

	select {
	case ev := <-ch:
		if ev.Type != TypeCached {
			t.Fatalf("type = %q", ev.Type)
		}
		if ev.Time.IsZero() {
			t.Fatalf("time not stamped")
		}
		if ev.Data.(CachedEvent).ID != 1 {
			t.Fatalf("data = %+v", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered")
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	// Never read; publishes must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: TypeCacheUpdated})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on slow subscriber")
	}
}

func TestUnsubscribeIsIdempotentAndSafe(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	unsub()
	unsub()
	// Publishing after unsubscribe must not panic even though the channel
	// is closed.
	b.Publish(Event{Type: TypeCacheUpdated})
}
