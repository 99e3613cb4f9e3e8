package journal

import (
	"context"
	"sync"
	"time"

	"nottray/internal/eventbus"
	"nottray/pkg/logx"
)

// Recorder subscribes to the event bus and appends lifecycle events to the
// store. Append failures are logged and dropped; journaling never blocks or
// fails the pipeline.
type Recorder struct {
	store Store
	bus   eventbus.Bus
	log   logx.Logger

	stopOnce sync.Once
	unsub    func()
	done     chan struct{}
}

func NewRecorder(store Store, bus eventbus.Bus, log logx.Logger) *Recorder {
	return &Recorder{store: store, bus: bus, log: log, done: make(chan struct{})}
}

func (r *Recorder) Start() {
	ch, unsub := r.bus.Subscribe(64)
	r.unsub = unsub
	go r.run(ch)
}

func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		if r.unsub == nil {
			// Start never ran, so run() is not around to close done.
			close(r.done)
			return
		}
		r.unsub()
	})
	<-r.done
}

func (r *Recorder) run(ch <-chan eventbus.Event) {
	defer close(r.done)
	for ev := range ch {
		e, ok := entryFor(ev)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := r.store.Append(ctx, e); err != nil {
			r.log.Warn("journal append failed", logx.String("type", e.Type), logx.Err(err))
		}
		cancel()
	}
}

func entryFor(ev eventbus.Event) (Entry, bool) {
	e := Entry{At: ev.Time, Type: ev.Type}
	switch d := ev.Data.(type) {
	case eventbus.CachedEvent:
		e.RunID, e.ID, e.Path = d.RunID, d.ID, d.Path
	case eventbus.TrashedEvent:
		e.RunID, e.ID, e.Path = d.RunID, d.ID, d.Path
	case eventbus.DisplayedEvent:
		e.ID, e.Detail = d.ID, d.Summary
	case eventbus.ClosedEvent:
		e.ID, e.Path, e.Reason = d.ID, d.Path, d.Reason
	case eventbus.ActionEvent:
		e.ID, e.Detail = d.ID, d.Key
	default:
		// Tree-shape churn (cache.updated) is too chatty to journal.
		return Entry{}, false
	}
	return e, true
}
