package notification

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reserved filenames inside the notification tree. Settings and sound files
// are never treated as notifications and protect their directory from bulk
// deletion.
const (
	SettingsFileName = ".settings.json"
	SoundFileName    = ".notification.wav"
	FileExt          = ".json"
)

// CloseReason follows the freedesktop notification close reason values.
type CloseReason int

const (
	ReasonExpired      CloseReason = 1
	ReasonDismissed    CloseReason = 2
	ReasonClosedByCall CloseReason = 3
	ReasonUndefined    CloseReason = 4
)

func (r CloseReason) String() string {
	switch r {
	case ReasonExpired:
		return "expired"
	case ReasonDismissed:
		return "dismissed"
	case ReasonClosedByCall:
		return "closed-by-call"
	default:
		return "undefined"
	}
}

// Urgency hint values.
const (
	UrgencyLow      = 0
	UrgencyNormal   = 1
	UrgencyCritical = 2
)

// Hints carries the typed notification hints (string/int/bool values).
// Unknown keys are preserved; non-scalar values are dropped at the
// persistence boundary.
type Hints map[string]any

// Notification is the immutable creation record of a single notification.
type Notification struct {
	AppName       string
	ReplacesID    int
	AppIcon       string
	Summary       string
	Body          string
	ExpireTimeout int // milliseconds; -1 default, 0 never auto-close
	ID            int
	Actions       map[string]string
	Hints         Hints
	At            time.Time // UTC
	RunID         string
}

// Cached wraps a Notification with its on-disk identity and run state.
// Composition instead of inheritance: the base record is embedded.
type Cached struct {
	Notification

	Path     string
	ClosedAt *time.Time
	Trashed  bool
}

// Key returns the filename this notification is stored under, which is also
// its stable key in the parent folder's notification map.
func (c *Cached) Key() string {
	return FileName(c.RunID, c.ID)
}

// hint lookup helpers; JSON round-trips turn ints into float64, so the
// accessors normalize.

func (h Hints) intVal(key string, def int) int {
	v, ok := h[key]
	if !ok {
		return def
	}
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return def
	}
}

func (h Hints) boolVal(key string) bool {
	v, ok := h[key]
	if !ok {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case int:
		return x != 0
	case float64:
		return x != 0
	default:
		return false
	}
}

func (h Hints) strVal(key string) string {
	v, ok := h[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Urgency returns the urgency hint; absent or malformed values mean normal.
func (n *Notification) Urgency() int {
	if n.Hints == nil {
		return UrgencyNormal
	}
	return n.Hints.intVal("urgency", UrgencyNormal)
}

// Transient reports whether the notification must never touch disk.
func (n *Notification) Transient() bool {
	return n.Hints.boolVal("transient")
}

// SuppressSound reports the suppress-sound hint.
func (n *Notification) SuppressSound() bool {
	return n.Hints.boolVal("suppress-sound")
}

// SoundFile returns the sound-file hint, if any.
func (n *Notification) SoundFile() string { return n.Hints.strVal("sound-file") }

// SoundName returns the sound-name hint, if any.
func (n *Notification) SoundName() string { return n.Hints.strVal("sound-name") }

// Position returns the x/y placement hints. ok is false when either is absent.
func (n *Notification) Position() (x, y int, ok bool) {
	if n.Hints == nil {
		return 0, 0, false
	}
	if _, xok := n.Hints["x"]; !xok {
		return 0, 0, false
	}
	if _, yok := n.Hints["y"]; !yok {
		return 0, 0, false
	}
	return n.Hints.intVal("x", 0), n.Hints.intVal("y", 0), true
}

// NewRunID generates the identifier for this process run. Notification ids
// are only unique within a run, so every addressing key is (run id, id).
func NewRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
