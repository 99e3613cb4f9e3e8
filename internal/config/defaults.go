package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 256
	defaultSweep     = time.Minute
)

// EffectiveRoot resolves the storage root, defaulting into the XDG data dir.
func (c *Config) EffectiveRoot() string {
	root := strings.TrimSpace(c.Storage.Root)
	if root == "" {
		return filepath.Join(xdg.DataHome, "nottray", "notifications")
	}
	return filepath.Clean(root)
}

// EffectiveWorkers returns the worker pool size with defaults applied.
func (c *Config) EffectiveWorkers() int {
	if c.Engine.Workers > 0 {
		return c.Engine.Workers
	}
	return defaultWorkers
}

// EffectiveQueueSize returns the pool queue capacity with defaults applied.
func (c *Config) EffectiveQueueSize() int {
	if c.Engine.QueueSize > 0 {
		return c.Engine.QueueSize
	}
	return defaultQueueSize
}

// SweepInterval parses the sweep interval, defaulting to one minute.
func (c *Config) SweepInterval() (time.Duration, error) {
	return ParseDurationOrDefault("sweep.interval", c.Sweep.Interval, defaultSweep)
}

// Validate rejects configs that cannot be applied.
func (c *Config) Validate() error {
	if _, err := c.SweepInterval(); err != nil {
		return err
	}
	if _, err := ParseDurationField("journal.busy_timeout", c.Journal.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("journal.retention", c.Journal.Retention); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(c.Display.Backend)) {
	case "", "auto", "dbus", "stub":
	default:
		return fmt.Errorf("display.backend: unknown backend %q", c.Display.Backend)
	}
	switch strings.ToLower(strings.TrimSpace(c.Journal.Driver)) {
	case "", "none", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("journal.driver: unknown driver %q", c.Journal.Driver)
	}
	return nil
}
