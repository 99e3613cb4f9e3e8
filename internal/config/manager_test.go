package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	p := writeConfig(t, "config.yaml", `
storage:
  root: /var/lib/nottray
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
engine:
  workers: 4
  queue_size: 64
sweep:
  interval: 30s
journal:
  driver: sqlite
  path: /tmp/journal.db
`)
	m := NewManager(p)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Root != "/var/lib/nottray" || cfg.Engine.Workers != 4 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if d, _ := cfg.SweepInterval(); d != 30*time.Second {
		t.Fatalf("sweep interval = %v", d)
	}
	if m.Get() != cfg {
		t.Fatalf("Get did not return committed config")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	p := writeConfig(t, "config.yaml", "storage:\n  root: /x\nbogus: true\n")
	if _, err := NewManager(p).Load(); err == nil {
		t.Fatalf("unknown field accepted")
	}
}

func TestLoadJSON(t *testing.T) {
	p := writeConfig(t, "config.json", `{"logging":{"level":"info","console":true,"file":{"enabled":false,"path":""}}}`)
	cfg, err := NewManager(p).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestReloadPublishesChangedConfig(t *testing.T) {
	p := writeConfig(t, "config.yaml", "logging:\n  level: info\n")
	m := NewManager(p)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	// Same content: commit hash matches, nothing published.
	m.reload(context.Background())
	select {
	case cfg := <-ch:
		t.Fatalf("unchanged config republished: %+v", cfg)
	default:
	}

	if err := os.WriteFile(p, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	m.reload(context.Background())
	select {
	case cfg := <-ch:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("published cfg = %+v", cfg)
		}
	case <-time.After(time.Second):
		t.Fatalf("changed config not published")
	}
	if m.Get().Logging.Level != "debug" {
		t.Fatalf("changed config not committed")
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	if cfg.EffectiveWorkers() != defaultWorkers {
		t.Fatalf("workers = %d", cfg.EffectiveWorkers())
	}
	if cfg.EffectiveQueueSize() != defaultQueueSize {
		t.Fatalf("queue = %d", cfg.EffectiveQueueSize())
	}
	if !cfg.SweepEnabled() {
		t.Fatalf("sweep must default enabled")
	}
	if d, err := cfg.SweepInterval(); err != nil || d != defaultSweep {
		t.Fatalf("interval = %v, %v", d, err)
	}
	if cfg.EffectiveRoot() == "" {
		t.Fatalf("effective root empty")
	}
}

func TestValidate(t *testing.T) {
	bad := &Config{Sweep: SweepConfig{Interval: "soon"}}
	if err := bad.Validate(); err == nil {
		t.Fatalf("invalid sweep interval accepted")
	}
	bad = &Config{Display: DisplayConfig{Backend: "wayland"}}
	if err := bad.Validate(); err == nil {
		t.Fatalf("unknown backend accepted")
	}
	bad = &Config{Journal: JournalConfig{Driver: "postgres"}}
	if err := bad.Validate(); err == nil {
		t.Fatalf("unknown journal driver accepted")
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	oldCfg := &Config{Logging: LoggingConfig{Level: "info"}}
	newCfg := &Config{
		Logging: LoggingConfig{Level: "debug"},
		Sweep:   SweepConfig{Interval: "2m"},
	}
	changed, _ := SummarizeConfigChange(oldCfg, newCfg)
	want := map[string]bool{"logging": true, "sweep": true}
	if len(changed) != 2 {
		t.Fatalf("changed = %v", changed)
	}
	for _, s := range changed {
		if !want[s] {
			t.Fatalf("unexpected section %q", s)
		}
	}
	if c, _ := SummarizeConfigChange(newCfg, newCfg); len(c) != 0 {
		t.Fatalf("self-diff = %v", c)
	}
}
