package display

import (
	"testing"
	"time"

	"nottray/internal/notification"
)

func TestStubShowCloseAndEvents(t *testing.T) {
	s := NewStub()

	h, err := s.Show(Unit{ID: 1, RunID: "r", Summary: "hi"})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if got := s.Active(); len(got) != 1 || got[h].Summary != "hi" {
		t.Fatalf("active = %+v", got)
	}

	if err := s.Close(h); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(s.Active()) != 0 {
		t.Fatalf("unit survived close")
	}
	if closed := s.Closed(); len(closed) != 1 || closed[0] != h {
		t.Fatalf("closed = %v", closed)
	}

	s.EmitClosed(h, notification.ReasonDismissed)
	select {
	case ev := <-s.Events():
		if ev.Kind != EventClosed || ev.Reason != notification.ReasonDismissed {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered")
	}
}
