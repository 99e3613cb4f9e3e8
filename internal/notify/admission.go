package notify

import (
	"fmt"
	"strings"

	"nottray/internal/display"
	"nottray/internal/notification"
	"nottray/pkg/logx"
)

const (
	maxBodyLength    = 1000
	coalesceJoiner   = "\n---\n"
	coalesceEllipsis = "..."
)

// Notify runs the candidate list through admission, coalesces the survivors
// into one display unit and shows it. batch marks catch-up submissions: they
// ignore do-not-disturb and backoff (the sweep already decided eligibility)
// and get the long expiry floor.
//
// Never returns an error: display failures surface as an on-screen error
// unit instead, so reception can always acknowledge the sender.
func (n *Notifier) Notify(candidates []notification.Cached, batch bool) {
	defer func() {
		if r := recover(); r != nil {
			n.reportError(fmt.Errorf("notify panic: %v", r))
		}
	}()

	accepted := n.admit(candidates, batch)
	if len(accepted) == 0 {
		return
	}

	unit, src := n.coalesce(accepted, batch)
	n.show(unit, src, accepted)
}

// show puts the unit on the surface and registers it as active. accepted
// drives the per-folder watermark.
func (n *Notifier) show(unit display.Unit, src *notification.Cached, accepted []notification.Cached) {
	handle, err := n.surface.Show(unit)
	if err != nil {
		n.log.Error("display failed", logx.String("summary", unit.Summary), logx.Err(err))
		n.reportError(err)
		return
	}

	key := activeKey{runID: unit.RunID, id: unit.ID}
	n.mu.Lock()
	n.active[key] = &activeUnit{handle: handle, unit: unit, source: src}
	n.byHandle[handle] = key
	for i := range accepted {
		n.markNotifiedLocked(folderOf(&accepted[i]), accepted[i].ID)
	}
	n.mu.Unlock()
}

// redisplay puts a snoozed notification back on screen without re-running
// the admission filter: the user deferred it explicitly, so a folder still
// under backoff or do-not-disturb must not swallow it for good.
func (n *Notifier) redisplay(c notification.Cached) {
	defer func() {
		if r := recover(); r != nil {
			n.reportError(fmt.Errorf("redisplay panic: %v", r))
		}
	}()

	if c.Trashed {
		return
	}
	unit, src := n.coalesce([]notification.Cached{c}, false)
	n.show(unit, src, []notification.Cached{c})
}

// admit applies the per-notification filter, in order: trashed entries never
// display; critical urgency always does; outside batch mode, active
// do-not-disturb then a positive backoff suppress the rest.
func (n *Notifier) admit(candidates []notification.Cached, batch bool) []notification.Cached {
	accepted := make([]notification.Cached, 0, len(candidates))
	for _, c := range candidates {
		if c.Trashed {
			continue
		}
		if c.Urgency() == notification.UrgencyCritical {
			accepted = append(accepted, c)
			continue
		}
		folder := folderOf(&c)
		if !batch && n.resolver.DoNotDisturbActive(folder) {
			n.log.Debug("suppressed by do-not-disturb",
				logx.Int("id", c.ID), logx.String("folder", folder))
			continue
		}
		if !batch && n.resolver.BackoffMinutes(folder) > 0 {
			n.log.Debug("deferred by backoff",
				logx.Int("id", c.ID), logx.String("folder", folder))
			continue
		}
		accepted = append(accepted, c)
	}
	return accepted
}

// coalesce folds the accepted set into one unit. A single survivor displays
// as itself; multiples collapse into a count headline attributed to the most
// recent sender, with the bodies stacked and clamped.
func (n *Notifier) coalesce(accepted []notification.Cached, batch bool) (display.Unit, *notification.Cached) {
	last := accepted[len(accepted)-1]

	unit := display.Unit{
		ID:            last.ID,
		RunID:         last.RunID,
		AppName:       last.AppName,
		AppIcon:       last.AppIcon,
		Summary:       last.Summary,
		Body:          last.Body,
		Actions:       last.Actions,
		Urgency:       last.Urgency(),
		Path:          last.Path,
		ExpireTimeout: expireFor(accepted, batch),
		SoundPath:     n.resolveSound(&last),
	}
	if x, y, ok := last.Position(); ok {
		unit.X, unit.Y, unit.HasPosition = x, y, true
	}

	var src *notification.Cached
	if len(accepted) == 1 {
		cp := last
		src = &cp
		return unit, src
	}

	unit.Summary = fmt.Sprintf("%d new notifications from %s", len(accepted), last.AppName)
	parts := make([]string, 0, len(accepted))
	for _, c := range accepted {
		part := c.Summary
		if c.Body != "" {
			if part != "" {
				part += "\n"
			}
			part += c.Body
		}
		parts = append(parts, part)
	}
	body := strings.Join(parts, coalesceJoiner)
	// Clamp on runes so the cut never splits a multi-byte character.
	if runes := []rune(body); len(runes) >= maxBodyLength {
		body = string(runes[:maxBodyLength-len(coalesceEllipsis)]) + coalesceEllipsis
	}
	unit.Body = body
	return unit, nil
}

// expireFor picks the largest requested timeout among the accepted set,
// never below the mode's floor.
func expireFor(accepted []notification.Cached, batch bool) int {
	expire := minExpireDirect
	if batch {
		expire = minExpireBatch
	}
	for _, c := range accepted {
		if c.ExpireTimeout > expire {
			expire = c.ExpireTimeout
		}
	}
	return expire
}

func (n *Notifier) markNotifiedLocked(folder string, id int) {
	if cur, ok := n.lastNotified[folder]; !ok || id > cur {
		n.lastNotified[folder] = id
	}
}
