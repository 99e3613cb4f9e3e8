package notify

import (
	"path/filepath"

	"nottray/internal/display"
	"nottray/internal/notification"
	"nottray/pkg/logx"
)

// reportError puts a synthetic error unit on screen so failures are visible
// without a terminal. Rate-limited; the path is deliberately simple and
// cannot re-enter Notify, so a broken surface cannot loop.
func (n *Notifier) reportError(cause error) {
	n.log.Error("notification pipeline error", logx.Err(cause))
	if !n.errLimiter.Allow() {
		return
	}

	unit := display.Unit{
		ID:            -1,
		RunID:         n.runID,
		AppName:       "nottray",
		AppIcon:       "error",
		Summary:       "Error",
		Body:          "Unable to read notifications: " + cause.Error(),
		ExpireTimeout: -1,
		Urgency:       notification.UrgencyNormal,
		Path:          filepath.Join(n.root, "error"+notification.FileExt),
		SoundPath:     themeSoundDir + "/dialog-error.oga",
	}

	handle, err := n.surface.Show(unit)
	if err != nil {
		n.log.Error("error unit display failed", logx.Err(err))
		return
	}

	key := activeKey{runID: n.runID, id: -1}
	n.mu.Lock()
	if prev, ok := n.active[key]; ok {
		delete(n.byHandle, prev.handle)
	}
	n.active[key] = &activeUnit{handle: handle, unit: unit}
	n.byHandle[handle] = key
	n.mu.Unlock()
}
