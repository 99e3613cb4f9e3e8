// Package policy resolves per-folder suppression settings with
// closest-ancestor-wins inheritance.
//
// A folder either has an explicit value for a setting or inherits from the
// nearest ancestor that does. An explicit empty value ("" timestamp, 0
// backoff) is still explicit: it shadows any ancestor value.
package policy

import (
	"path/filepath"
	"sync"
	"time"

	"nottray/pkg/logx"
)

// Settings file keys.
const (
	KeyDoNotDisturbUntil = "do_not_disturb_until"
	KeyHideFromTrayUntil = "hide_from_tray_until"
	KeyBackoffMinutes    = "notification_backoff_minutes"
)

// Resolver caches folder settings and answers policy questions for the
// notifier and the tray. All values are keyed by cleaned absolute folder
// path; mutation happens via RefreshFolder and the Write* methods only.
type Resolver struct {
	root string
	log  logx.Logger

	mu sync.RWMutex
	// nil value = explicitly cleared at this folder (stops inheritance).
	doNotDisturb map[string]*time.Time
	hideFromTray map[string]*time.Time
	backoff      map[string]int

	now func() time.Time
}

func NewResolver(root string, log logx.Logger) *Resolver {
	return &Resolver{
		root:         filepath.Clean(root),
		log:          log,
		doNotDisturb: map[string]*time.Time{},
		hideFromTray: map[string]*time.Time{},
		backoff:      map[string]int{},
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Root returns the tree root the resolver walks up to.
func (r *Resolver) Root() string { return r.root }

// walkUp visits folder and each ancestor up to and including the root.
// visit returns true to stop.
func (r *Resolver) walkUp(folder string, visit func(p string) bool) {
	p := filepath.Clean(folder)
	for {
		if visit(p) {
			return
		}
		if p == r.root {
			return
		}
		parent := filepath.Dir(p)
		if parent == p {
			return
		}
		p = parent
	}
}

// DoNotDisturbUntil resolves the nearest explicit do-not-disturb timestamp
// for folder. Returns nil when no ancestor sets one (or the nearest setting
// is explicitly cleared).
func (r *Resolver) DoNotDisturbUntil(folder string) *time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return resolveTime(r.doNotDisturb, r, folder)
}

// DoNotDisturbActive reports whether folder currently sits inside a
// do-not-disturb window. Absent or past timestamps resolve to inactive,
// never to an error.
func (r *Resolver) DoNotDisturbActive(folder string) bool {
	until := r.DoNotDisturbUntil(folder)
	return until != nil && until.After(r.now())
}

// HideFromTrayActive mirrors DoNotDisturbActive for the tray-visibility
// setting.
func (r *Resolver) HideFromTrayActive(folder string) bool {
	r.mu.RLock()
	until := resolveTime(r.hideFromTray, r, folder)
	r.mu.RUnlock()
	return until != nil && until.After(r.now())
}

// BackoffMinutes resolves the display backoff for folder. Zero (or a
// non-positive explicit value) means no backoff.
func (r *Resolver) BackoffMinutes(folder string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v := 0
	r.walkUp(folder, func(p string) bool {
		if m, ok := r.backoff[p]; ok {
			v = m
			return true
		}
		return false
	})
	return v
}

func resolveTime(m map[string]*time.Time, r *Resolver, folder string) *time.Time {
	var out *time.Time
	r.walkUp(folder, func(p string) bool {
		if v, ok := m[p]; ok {
			out = v
			return true
		}
		return false
	})
	return out
}

// SetNow overrides the clock; tests only.
func (r *Resolver) SetNow(now func() time.Time) { r.now = now }
