package notification

import (
	"encoding/json"
)

// fileRecord is the persisted JSON shape, one file per notification.
// `at` and `path` are intentionally absent: the timestamp is restored from
// file mtime and the path from the file's location.
type fileRecord struct {
	AppName       string            `json:"app_name"`
	Summary       string            `json:"summary"`
	Body          string            `json:"body"`
	AppIcon       string            `json:"app_icon"`
	ID            int               `json:"id"`
	ReplacesID    int               `json:"replaces_id"`
	ExpireTimeout int               `json:"expire_timeout"`
	RunID         string            `json:"notification_tray_run_id"`
	Actions       map[string]string `json:"actions"`
	Hints         map[string]any    `json:"hints"`
}

// Encode serializes a notification for persistence. Non-scalar hint values
// (image data and the like) are skipped; they cannot round-trip through JSON
// and are only meaningful to the display surface that received them live.
func Encode(n *Notification) ([]byte, error) {
	rec := fileRecord{
		AppName:       n.AppName,
		Summary:       n.Summary,
		Body:          n.Body,
		AppIcon:       n.AppIcon,
		ID:            n.ID,
		ReplacesID:    n.ReplacesID,
		ExpireTimeout: n.ExpireTimeout,
		RunID:         n.RunID,
		Actions:       n.Actions,
		Hints:         map[string]any{},
	}
	if rec.Actions == nil {
		rec.Actions = map[string]string{}
	}
	for k, v := range n.Hints {
		switch v.(type) {
		case string, bool, int, int64, float64:
			rec.Hints[k] = v
		}
	}
	return json.Marshal(rec)
}

// Decode parses a persisted notification file. Unknown fields are ignored and
// missing fields default; only structurally invalid JSON is an error (callers
// skip such files during scans).
func Decode(data []byte) (Notification, error) {
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Notification{}, err
	}

	n := Notification{
		AppName:       rec.AppName,
		Summary:       rec.Summary,
		Body:          rec.Body,
		AppIcon:       rec.AppIcon,
		ID:            rec.ID,
		ReplacesID:    rec.ReplacesID,
		ExpireTimeout: rec.ExpireTimeout,
		RunID:         rec.RunID,
		Actions:       rec.Actions,
	}
	if n.Actions == nil {
		n.Actions = map[string]string{}
	}
	if rec.Hints != nil {
		n.Hints = Hints(rec.Hints)
	} else {
		n.Hints = Hints{}
	}
	return n, nil
}
