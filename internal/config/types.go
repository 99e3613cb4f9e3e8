package config

type Config struct {
	Storage StorageConfig `json:"storage"`
	Logging LoggingConfig `json:"logging"`
	Engine  EngineConfig  `json:"engine"`
	Sweep   SweepConfig   `json:"sweep"`
	Display DisplayConfig `json:"display,omitempty"`
	Journal JournalConfig `json:"journal,omitempty"`
}

// StorageConfig locates the on-disk notification store.
//
// Root defaults to <XDG data dir>/nottray/notifications when empty.
type StorageConfig struct {
	Root string `json:"root,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// EngineConfig controls the shared worker pool.
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 256
type EngineConfig struct {
	Workers   int `json:"workers,omitempty"`
	QueueSize int `json:"queue_size,omitempty"`
}

// SweepConfig controls the periodic catch-up sweep that replays
// notifications suppressed by do-not-disturb or backoff.
//
// Interval is a Go duration string (e.g. "30s", "1m"); default "1m".
type SweepConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"` // nil means enabled
	Interval string `json:"interval,omitempty"`
}

// DisplayConfig selects the rendering surface.
//
// Backend is "auto" (session bus when available), "dbus" or "stub".
type DisplayConfig struct {
	Backend string `json:"backend,omitempty"`
}

// JournalConfig controls the optional lifecycle journal.
//
// Example:
//
//	"journal": { "driver": "sqlite", "path": "~/.local/share/nottray/journal.db" }
type JournalConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
	Retention   string `json:"retention,omitempty"`    // Go duration string
}

// SweepEnabled reports the effective sweep toggle.
func (c *Config) SweepEnabled() bool {
	return c.Sweep.Enabled == nil || *c.Sweep.Enabled
}
