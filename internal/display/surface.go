// Package display defines the surface this core hands display units to.
// Rendering itself (popup windows, stacking, sounds) happens outside; the
// core only needs Show/Close and the inbound event stream.
package display

import (
	"nottray/internal/notification"
)

// Handle identifies one active display on a surface.
type Handle uint64

// Unit is what the scheduler asks the surface to put on screen: either a
// single notification or a coalesced batch.
type Unit struct {
	ID            int
	RunID         string
	AppName       string
	AppIcon       string
	Summary       string
	Body          string
	ExpireTimeout int // milliseconds
	Actions       map[string]string
	Urgency       int
	Path          string // storage path of the representative notification
	SoundPath     string // resolved sound, empty when suppressed/none
	X, Y          int
	HasPosition   bool
}

// EventKind enumerates surface callbacks.
type EventKind int

const (
	EventDisplayed EventKind = iota
	EventClosed
	EventSnoozed
	EventActionInvoked
)

// Event is an inbound surface event.
type Event struct {
	Handle    Handle
	Kind      EventKind
	Reason    notification.CloseReason // EventClosed
	SnoozeMs  int                      // EventSnoozed
	ActionKey string                   // EventActionInvoked
}

// Surface is the external display collaborator.
type Surface interface {
	// Show puts a unit on screen and returns its handle.
	Show(u Unit) (Handle, error)
	// Close removes an active display. Unknown handles are a no-op.
	Close(h Handle) error
	// Events streams surface callbacks until the surface shuts down.
	Events() <-chan Event
}
