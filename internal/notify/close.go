package notify

import (
	"context"
	"time"

	"nottray/internal/display"
	"nottray/internal/eventbus"
	"nottray/internal/notification"
	"nottray/pkg/logx"
)

// CloseByID closes the active display for a current-run notification id.
// Unknown ids are a no-op; closing twice is safe.
func (n *Notifier) CloseByID(id int, reason notification.CloseReason) {
	n.closeActive(activeKey{runID: n.runID, id: id}, reason)
}

// CloseAll tears down every active display, as on shutdown. No closed events
// are emitted: an explicit close must not echo back to its caller.
func (n *Notifier) CloseAll() {
	n.mu.Lock()
	keys := make([]activeKey, 0, len(n.active))
	for k := range n.active {
		keys = append(keys, k)
	}
	n.mu.Unlock()

	for _, k := range keys {
		n.closeUnit(k, notification.ReasonClosedByCall, false)
	}
}

func (n *Notifier) closeByHandle(h display.Handle, reason notification.CloseReason) {
	n.mu.Lock()
	key, ok := n.byHandle[h]
	n.mu.Unlock()
	if !ok {
		return
	}
	n.closeActive(key, reason)
}

// closeActive is the user/display-driven close path: dismissed and
// closed-by-call notifications are also moved to the trash so they do not
// resurface in later sweeps.
func (n *Notifier) closeActive(key activeKey, reason notification.CloseReason) {
	n.closeUnit(key, reason, true)
}

func (n *Notifier) closeUnit(key activeKey, reason notification.CloseReason, trash bool) {
	n.mu.Lock()
	au, ok := n.active[key]
	if ok {
		delete(n.active, key)
		delete(n.byHandle, au.handle)
	}
	n.mu.Unlock()
	if !ok {
		n.log.Debug("close for unknown notification",
			logx.Int("id", key.id), logx.String("run_id", key.runID))
		return
	}

	if err := n.surface.Close(au.handle); err != nil {
		n.log.Warn("surface close failed", logx.Int("id", key.id), logx.Err(err))
	}
	n.log.Info("notification closed",
		logx.Int("id", key.id), logx.String("reason", reason.String()))

	// Explicit closes come from a caller that already knows; everything else
	// (expiry, dismissal) is news.
	if reason != notification.ReasonClosedByCall {
		n.bus.Publish(eventbus.Event{Type: eventbus.TypeClosed, Data: eventbus.ClosedEvent{
			ID:         key.id,
			Reason:     int(reason),
			Path:       au.unit.Path,
			CurrentRun: key.runID == n.runID,
		}})
	}

	// Dismissal and programmatic close retire the notification; expiry leaves
	// it pending for later sweeps. The trash runs on the pool so this
	// goroutine, which also dispatches surface events, never waits on file I/O.
	if trash && au.unit.Path != "" &&
		(reason == notification.ReasonDismissed || reason == notification.ReasonClosedByCall) {
		n.tree.TrashAsync(au.unit.Path)
	}
}

// snoozeByHandle hides the unit now and re-displays its source notification
// after d, skipping the admission filter: a backoff or do-not-disturb window
// still open at that time must not eat a notification the user asked to see
// again. Coalesced batch units cannot be snoozed.
func (n *Notifier) snoozeByHandle(h display.Handle, d time.Duration) {
	n.mu.Lock()
	key, ok := n.byHandle[h]
	var src *notification.Cached
	if ok {
		src = n.active[key].source
	}
	n.mu.Unlock()
	if !ok {
		return
	}
	if src == nil {
		n.log.Warn("snooze ignored for coalesced unit", logx.Int("id", key.id))
		return
	}

	n.closeUnit(key, notification.ReasonClosedByCall, false)
	n.log.Info("notification snoozed",
		logx.Int("id", key.id), logx.Duration("for", d))

	c := *src
	if n.runner != nil {
		n.runner.After(d, "notify.snooze", func(_ context.Context) {
			n.redisplay(c)
		})
		return
	}
	time.AfterFunc(d, func() {
		n.redisplay(c)
	})
}
