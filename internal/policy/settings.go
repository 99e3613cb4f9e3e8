package policy

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"nottray/internal/notification"
	"nottray/pkg/logx"
)

// RefreshFolder re-reads folder's settings file into the caches. A missing
// or unreadable file clears the folder's explicit entries so it inherits
// again; a present key always produces an explicit entry, even when empty.
func (r *Resolver) RefreshFolder(folder string) {
	folder = filepath.Clean(folder)

	raw, err := readSettings(folder)

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.doNotDisturb, folder)
	delete(r.hideFromTray, folder)
	delete(r.backoff, folder)
	if err != nil {
		return
	}

	if v, ok := raw[KeyDoNotDisturbUntil]; ok {
		r.doNotDisturb[folder] = parseTimeValue(v)
	}
	if v, ok := raw[KeyHideFromTrayUntil]; ok {
		r.hideFromTray[folder] = parseTimeValue(v)
	}
	if v, ok := raw[KeyBackoffMinutes]; ok {
		if m, ok := asInt(v); ok {
			r.backoff[folder] = m
		}
	}
}

// LoadAll scans root for settings files and refreshes each folder found.
// Used once at startup; the watcher keeps the caches current afterwards.
func (r *Resolver) LoadAll() {
	count := 0
	_ = filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Directory vanished mid-walk; treat as absence.
			return nil
		}
		if !d.IsDir() && d.Name() == notification.SettingsFileName {
			r.RefreshFolder(filepath.Dir(path))
			count++
		}
		return nil
	})
	r.log.Info("settings loaded", logx.String("root", r.root), logx.Int("folders", count))
}

// WriteDateTimeSetting persists a timestamp setting for folder, merging with
// whatever other keys the settings file already holds, and primes the cache
// so the next resolution sees it without a reload.
func (r *Resolver) WriteDateTimeSetting(folder, key string, until time.Time) error {
	folder = filepath.Clean(folder)

	r.mu.Lock()
	u := until
	switch key {
	case KeyDoNotDisturbUntil:
		r.doNotDisturb[folder] = &u
	case KeyHideFromTrayUntil:
		r.hideFromTray[folder] = &u
	}
	r.mu.Unlock()

	raw, err := readSettings(folder)
	if err != nil {
		raw = map[string]any{}
	}
	raw[key] = until.UTC().Format(time.RFC3339)
	return writeSettings(folder, raw)
}

// WriteBackoffMinutes persists the backoff setting for folder.
func (r *Resolver) WriteBackoffMinutes(folder string, minutes int) error {
	folder = filepath.Clean(folder)

	r.mu.Lock()
	r.backoff[folder] = minutes
	r.mu.Unlock()

	raw, err := readSettings(folder)
	if err != nil {
		raw = map[string]any{}
	}
	raw[KeyBackoffMinutes] = minutes
	return writeSettings(folder, raw)
}

func readSettings(folder string) (map[string]any, error) {
	b, err := os.ReadFile(filepath.Join(folder, notification.SettingsFileName))
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func writeSettings(folder string, raw map[string]any) error {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(folder, notification.SettingsFileName), b, 0o644)
}

// parseTimeValue maps a settings value to an explicit timestamp. Empty
// strings and unparseable values become explicit "no window" entries.
func parseTimeValue(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return int(x), true
	case int:
		return x, true
	case int64:
		return int(x), true
	default:
		return 0, false
	}
}
