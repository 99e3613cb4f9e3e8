package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"

	"nottray/internal/notification"
)

func writeAppConfig(t *testing.T, root string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
storage:
  root: ` + root + `
logging:
  level: error
  console: false
  file:
    enabled: false
    path: ""
display:
  backend: stub
sweep:
  enabled: false
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func newTestApp(t *testing.T) (*App, string) {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	xdg.Reload()

	root := filepath.Join(t.TempDir(), "store")
	a, err := NewApp(writeAppConfig(t, root))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := a.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		_ = a.Stop(context.Background())
		cancel()
	})
	return a, root
}

func TestSubmitPersistsAndCounts(t *testing.T) {
	a, root := newTestApp(t)

	id := a.Submit(notification.Notification{
		AppName: "Firefox",
		Summary: "New Tab",
		Body:    "opened",
	})
	if id != 0 {
		t.Fatalf("first id = %d, want 0", id)
	}
	if next := a.Submit(notification.Notification{AppName: "Mail", Summary: "Hi"}); next != 1 {
		t.Fatalf("second id = %d, want 1", next)
	}

	want := filepath.Join(root, "firefox", "new-tab", a.RunID()+"-0.json")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("notification not persisted at %s: %v", want, err)
	}
	if got := a.UnreadCount(); got != 2 {
		t.Fatalf("unread = %d, want 2", got)
	}
}

func TestTrashPathUpdatesCount(t *testing.T) {
	a, root := newTestApp(t)

	a.Submit(notification.Notification{AppName: "Mail", Summary: "One"})
	a.Submit(notification.Notification{AppName: "Mail", Summary: "Two"})

	a.TrashPath(filepath.Join(root, "mail", "one", a.RunID()+"-0.json"))
	if got := a.UnreadCount(); got != 1 {
		t.Fatalf("unread after trash = %d, want 1", got)
	}

	// Root trash fans out through the worker pool; poll for completion.
	a.TrashPath(root)
	deadline := time.Now().Add(2 * time.Second)
	for a.UnreadCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("unread after root trash = %d, want 0", a.UnreadCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSweepRefreshesFolderPolicies(t *testing.T) {
	a, root := newTestApp(t)

	a.Submit(notification.Notification{AppName: "Mail", Summary: "One"})
	if got := a.UnreadCount(); got != 1 {
		t.Fatalf("unread = %d, want 1", got)
	}

	// Written behind the resolver's back; only a refresh can pick it up.
	folder := filepath.Join(root, "mail", "one")
	settings := fmt.Sprintf(`{"hide_from_tray_until":%q}`,
		time.Now().Add(time.Hour).Format(time.RFC3339))
	if err := os.WriteFile(filepath.Join(folder, notification.SettingsFileName), []byte(settings), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	a.sweep(context.Background())
	if got := a.UnreadCount(); got != 0 {
		t.Fatalf("unread after sweep = %d, want 0", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	a, _ := newTestApp(t)
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
