package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is a lightweight, in-memory signal used to decouple components.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers MUST use buffered channels.
//   - Slow subscribers may drop events (bounded backpressure).
//
// Data should be small and ideally JSON-serializable.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// Event types emitted by the cache tree and notifier.
const (
	TypeCacheUpdated  = "cache.updated"
	TypeCached        = "notification.cached"
	TypeTrashed       = "notification.trashed"
	TypeDisplayed     = "notification.displayed"
	TypeClosed        = "notification.closed"
	TypeActionInvoked = "notification.action"
)

// CachedEvent fires when a notification is inserted into the tree.
type CachedEvent struct {
	ID        int    `json:"id"`
	RunID     string `json:"run_id"`
	Path      string `json:"path"`
	Transient bool   `json:"transient"`
}

// TrashedEvent fires when a notification belonging to the current run is
// marked trashed.
type TrashedEvent struct {
	ID    int    `json:"id"`
	RunID string `json:"run_id"`
	Path  string `json:"path"`
}

// DisplayedEvent fires when a display unit reaches the screen.
type DisplayedEvent struct {
	ID      int    `json:"id"`
	AppName string `json:"app_name"`
	Summary string `json:"summary"`
	Body    string `json:"body"`
}

// ClosedEvent fires when an active display is closed for any reason other
// than an explicit close call (that path must not echo back to its caller).
type ClosedEvent struct {
	ID         int    `json:"id"`
	Reason     int    `json:"reason"`
	Path       string `json:"path"`
	CurrentRun bool   `json:"current_run"`
}

// ActionEvent fires when the user invokes a notification action.
type ActionEvent struct {
	ID  int    `json:"id"`
	Key string `json:"key"`
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns a simple in-memory fanout bus.
//
// It intentionally does not own any background goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Snapshot subscribers so Publish doesn't hold locks while attempting sends.
	b.mu.RLock()
	chs := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		// Non-blocking delivery. If subscriber is slow, we drop.
		// If a subscriber unsubscribes concurrently and the channel closes,
		// recover from a possible panic (send on closed channel).
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			// Closing is safe because Publish recovers from send panics.
			close(ch)
		})
	}
	return ch, unsub
}
