package cache

import (
	"os"
	"path/filepath"
	"testing"

	"nottray/internal/eventbus"
	"nottray/internal/notification"
	"nottray/internal/trashdir"
	"nottray/pkg/logx"
)

func newTestTree(t *testing.T) (*Tree, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "store")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir root: %v", err)
	}
	trasher := trashdir.NewAt(filepath.Join(t.TempDir(), "trash"))
	tree := New(root, "run1", eventbus.New(), trasher, nil, logx.Nop())
	return tree, root
}

func cached(root, runID string, id int, app, summary string) *notification.Cached {
	n := notification.Notification{
		AppName: app,
		Summary: summary,
		ID:      id,
		RunID:   runID,
	}
	return &notification.Cached{
		Notification: n,
		Path:         notification.DefaultResolver(root, &n),
	}
}

func TestCachePersistsAndIndexes(t *testing.T) {
	tree, root := newTestTree(t)

	c := cached(root, "run1", 0, "Firefox", "New Tab")
	tree.Cache(c)

	want := filepath.Join(root, "firefox", "new-tab", "run1-0.json")
	if c.Path != want {
		t.Fatalf("path = %q, want %q", c.Path, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("file not persisted: %v", err)
	}

	got, ok := tree.Lookup("run1", 0)
	if !ok || got.Summary != "New Tab" {
		t.Fatalf("lookup = %+v, %v", got, ok)
	}
}

func TestCacheTransientSkipsDisk(t *testing.T) {
	tree, root := newTestTree(t)

	c := cached(root, "run1", 1, "Mail", "Ping")
	c.Hints = notification.Hints{"transient": true}
	tree.Cache(c)

	if _, err := os.Stat(c.Path); !os.IsNotExist(err) {
		t.Fatalf("transient notification touched disk: %v", err)
	}
	if _, ok := tree.Lookup("run1", 1); !ok {
		t.Fatalf("transient notification missing from tree")
	}
}

func TestLoadExistingSkipsMalformed(t *testing.T) {
	tree, root := newTestTree(t)

	good := cached(root, "old1", 3, "Mail", "Hello")
	tree.Cache(good)

	bad := filepath.Join(root, "mail", "hello", "old1-4.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write bad: %v", err)
	}
	// Settings files are never notifications.
	if err := os.WriteFile(filepath.Join(root, "mail", notification.SettingsFileName), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	fresh := New(root, "run2", eventbus.New(), trashdir.NewAt(t.TempDir()), nil, logx.Nop())
	if err := fresh.LoadExisting(); err != nil {
		t.Fatalf("load: %v", err)
	}

	if _, ok := fresh.Lookup("old1", 3); !ok {
		t.Fatalf("persisted notification not reloaded")
	}
	if _, ok := fresh.Lookup("old1", 4); ok {
		t.Fatalf("malformed file reloaded")
	}
	if got := fresh.UnreadCount("", nil); got != 1 {
		t.Fatalf("unread = %d, want 1", got)
	}
}

func TestLoadExistingMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "never-created")
	tree := New(root, "run1", eventbus.New(), trashdir.NewAt(t.TempDir()), nil, logx.Nop())
	if err := tree.LoadExisting(); err != nil {
		t.Fatalf("missing root must be a valid empty start: %v", err)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	tree, root := newTestTree(t)
	tree.Cache(cached(root, "run1", 0, "App", "One"))

	snap, ok := tree.Snapshot("")
	if !ok {
		t.Fatalf("snapshot missing")
	}
	if len(snap.Folders) != 1 || len(snap.Folders[0].Folders) != 1 {
		t.Fatalf("unexpected shape: %+v", snap)
	}
	leaf := &snap.Folders[0].Folders[0]
	if len(leaf.Notifications) != 1 {
		t.Fatalf("leaf notifications: %+v", leaf)
	}
	leaf.Notifications[0].Summary = "mutated"

	got, _ := tree.Lookup("run1", 0)
	if got.Summary != "One" {
		t.Fatalf("snapshot mutation leaked into tree")
	}
}

func TestUnreadCountSkipsHidden(t *testing.T) {
	tree, root := newTestTree(t)
	tree.Cache(cached(root, "run1", 0, "Mail", "A"))
	tree.Cache(cached(root, "run1", 1, "Chat", "B"))

	hidden := func(folder string) bool {
		return filepath.Base(folder) == "chat"
	}
	if got := tree.UnreadCount("", hidden); got != 1 {
		t.Fatalf("unread = %d, want 1", got)
	}
	if got := tree.UnreadCount("", nil); got != 2 {
		t.Fatalf("unread = %d, want 2", got)
	}
}
