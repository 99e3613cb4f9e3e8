// Package journal persists the notification lifecycle (cached, displayed,
// trashed, closed) to a local database, feeding history views and debugging.
// It is an observer: the daemon works identically with the journal disabled.
package journal

import (
	"context"
	"errors"
	"strings"
	"time"

	"nottray/pkg/logx"
)

// ErrDisabled is returned by operations on a nil/disabled journal.
var ErrDisabled = errors.New("journal disabled")

// Entry is one lifecycle record.
type Entry struct {
	At     time.Time
	Type   string // eventbus type string
	RunID  string
	ID     int
	Path   string
	Reason int    // close reason, zero otherwise
	Detail string // free-form, e.g. summary text
}

// Config selects and locates the journal backend.
type Config struct {
	Driver      string        `yaml:"driver"` // "", "none" or "sqlite"
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
	Retention   time.Duration `yaml:"retention"`
}

// Store is the persistence API.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Open initializes the configured store. Returns (nil, nil) when disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown journal driver: " + driver)
	}
}
