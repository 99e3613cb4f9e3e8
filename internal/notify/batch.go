package notify

import (
	"nottray/internal/cache"
	"nottray/internal/notification"
	"nottray/pkg/logx"
)

// BatchNotify sweeps the whole tree and replays notifications the admission
// filter held back earlier. Two situations qualify a folder entry:
//
//   - backoff catch-up: the folder has a positive backoff and the entry is
//     at most that many minutes old, so the periodic sweep is its display
//     window;
//   - post-quiet-hours catch-up: the folder's do-not-disturb has ended since
//     this run started, the entry is stamped at or after that end, and it is
//     newer than the folder's displayed-id watermark.
//
// Folders with do-not-disturb still active are skipped entirely. Eligible
// entries per folder go through Notify in batch mode, which coalesces them
// and skips the direct-mode suppressions.
func (n *Notifier) BatchNotify() {
	snap, ok := n.tree.Snapshot("")
	if !ok {
		return
	}
	n.log.Debug("batch sweep started")
	n.sweepFolder(snap)
}

func (n *Notifier) sweepFolder(v cache.FolderView) {
	eligible := n.eligibleIn(v)
	if len(eligible) > 0 {
		n.Notify(eligible, true)
	}
	for _, child := range v.Folders {
		n.sweepFolder(child)
	}
}

func (n *Notifier) eligibleIn(v cache.FolderView) []notification.Cached {
	if len(v.Notifications) == 0 {
		return nil
	}

	n.mu.Lock()
	watermark, seen := n.lastNotified[v.Path]
	n.mu.Unlock()
	if !seen {
		watermark = -1
	}

	dndActive := n.resolver.DoNotDisturbActive(v.Path)
	dndEnd := n.resolver.DoNotDisturbUntil(v.Path)
	backoff := n.resolver.BackoffMinutes(v.Path)
	now := n.now()

	var eligible []notification.Cached
	for _, c := range v.Notifications {
		if c.Trashed || dndActive {
			continue
		}
		inBackoffWindow := backoff > 0 && now.Sub(c.At).Minutes() <= float64(backoff)
		afterQuietHours := dndEnd != nil &&
			!dndEnd.Before(n.startedAt) &&
			!c.At.Before(*dndEnd) &&
			c.ID > watermark
		if inBackoffWindow || afterQuietHours {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) > 0 {
		n.log.Debug("batch folder eligible",
			logx.String("folder", v.Path), logx.Int("count", len(eligible)))
	}
	return eligible
}
