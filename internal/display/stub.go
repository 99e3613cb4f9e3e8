package display

import (
	"sync"

	"nottray/internal/notification"
)

// Stub is an in-memory surface for tests and headless runs. Shown units are
// recorded and events are injected by the caller.
type Stub struct {
	mu     sync.Mutex
	next   Handle
	shown  map[Handle]Unit
	closed []Handle
	events chan Event

	// FailShow, when set, makes Show return this error.
	FailShow error
}

func NewStub() *Stub {
	return &Stub{
		shown:  map[Handle]Unit{},
		events: make(chan Event, 32),
	}
}

func (s *Stub) Show(u Unit) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailShow != nil {
		return 0, s.FailShow
	}
	s.next++
	h := s.next
	s.shown[h] = u
	return h, nil
}

func (s *Stub) Close(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.shown, h)
	s.closed = append(s.closed, h)
	return nil
}

func (s *Stub) Events() <-chan Event { return s.events }

// Active returns the currently shown units keyed by handle.
func (s *Stub) Active() map[Handle]Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Handle]Unit, len(s.shown))
	for h, u := range s.shown {
		out[h] = u
	}
	return out
}

// Closed returns handles passed to Close, in order.
func (s *Stub) Closed() []Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Handle(nil), s.closed...)
}

// Last returns the most recently shown unit.
func (s *Stub) Last() (Handle, Unit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		best Handle
		u    Unit
		ok   bool
	)
	for h, su := range s.shown {
		if h >= best {
			best, u, ok = h, su, true
		}
	}
	return best, u, ok
}

// EmitClosed injects a close event for h.
func (s *Stub) EmitClosed(h Handle, reason notification.CloseReason) {
	s.events <- Event{Handle: h, Kind: EventClosed, Reason: reason}
}

// EmitSnoozed injects a snooze event for h.
func (s *Stub) EmitSnoozed(h Handle, ms int) {
	s.events <- Event{Handle: h, Kind: EventSnoozed, SnoozeMs: ms}
}

// EmitAction injects an action-invoked event for h.
func (s *Stub) EmitAction(h Handle, key string) {
	s.events <- Event{Handle: h, Kind: EventActionInvoked, ActionKey: key}
}

// EmitDisplayed injects a displayed event for h.
func (s *Stub) EmitDisplayed(h Handle) {
	s.events <- Event{Handle: h, Kind: EventDisplayed}
}
