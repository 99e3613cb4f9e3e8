package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"nottray/internal/eventbus"
	"nottray/internal/notification"
	"nottray/internal/trashdir"
	"nottray/pkg/logx"
)

func collectTrashed(t *testing.T, bus eventbus.Bus) (<-chan eventbus.Event, func()) {
	t.Helper()
	return bus.Subscribe(16)
}

func drainTrashedIDs(ch <-chan eventbus.Event) []int {
	var ids []int
	for {
		select {
		case ev := <-ch:
			if ev.Type == eventbus.TypeTrashed {
				ids = append(ids, ev.Data.(eventbus.TrashedEvent).ID)
			}
		case <-time.After(50 * time.Millisecond):
			return ids
		}
	}
}

func TestTrashFileRemovesFromDiskAndMarks(t *testing.T) {
	root := filepath.Join(t.TempDir(), "store")
	bus := eventbus.New()
	tree := New(root, "run1", bus, trashdir.NewAt(t.TempDir()), nil, logx.Nop())

	c := cached(root, "run1", 0, "Mail", "Hello")
	tree.Cache(c)

	ch, unsub := collectTrashed(t, bus)
	defer unsub()

	tree.Trash(c.Path)

	if _, err := os.Stat(c.Path); !os.IsNotExist(err) {
		t.Fatalf("file still on disk: %v", err)
	}
	got, ok := tree.Lookup("run1", 0)
	if !ok || !got.Trashed {
		t.Fatalf("entry not marked trashed: %+v %v", got, ok)
	}

	ids := drainTrashedIDs(ch)
	if len(ids) != 1 || ids[0] != 0 {
		t.Fatalf("trashed events = %v, want [0]", ids)
	}
}

func TestTrashIsIdempotentOnEvents(t *testing.T) {
	root := filepath.Join(t.TempDir(), "store")
	bus := eventbus.New()
	tree := New(root, "run1", bus, trashdir.NewAt(t.TempDir()), nil, logx.Nop())

	c := cached(root, "run1", 0, "Mail", "Hello")
	tree.Cache(c)

	ch, unsub := collectTrashed(t, bus)
	defer unsub()

	tree.Trash(c.Path)
	tree.Trash(c.Path)

	if ids := drainTrashedIDs(ch); len(ids) != 1 {
		t.Fatalf("trashed events = %v, want exactly one", ids)
	}
}

func TestTrashNonexistentPathIsNoop(t *testing.T) {
	tree, root := newTestTree(t)
	// Must not panic, error or change anything.
	tree.Trash(filepath.Join(root, "no", "such", "run1-9.json"))
}

func TestTrashTransientMarksWithoutDisk(t *testing.T) {
	root := filepath.Join(t.TempDir(), "store")
	bus := eventbus.New()
	tree := New(root, "run1", bus, trashdir.NewAt(t.TempDir()), nil, logx.Nop())

	c := cached(root, "run1", 2, "Chat", "Ping")
	c.Hints = notification.Hints{"transient": true}
	tree.Cache(c)

	ch, unsub := collectTrashed(t, bus)
	defer unsub()

	tree.Trash(c.Path)

	got, _ := tree.Lookup("run1", 2)
	if !got.Trashed {
		t.Fatalf("transient entry not marked")
	}
	if ids := drainTrashedIDs(ch); len(ids) != 1 {
		t.Fatalf("trashed events = %v", ids)
	}
}

func TestTrashDirWholeMove(t *testing.T) {
	root := filepath.Join(t.TempDir(), "store")
	tree := New(root, "run1", eventbus.New(), trashdir.NewAt(t.TempDir()), nil, logx.Nop())

	a := cached(root, "run1", 0, "Mail", "Inbox")
	b := cached(root, "run1", 1, "Mail", "Inbox")
	tree.Cache(a)
	tree.Cache(b)

	dir := filepath.Dir(a.Path)
	tree.Trash(dir)

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("directory still present: %v", err)
	}
	for _, id := range []int{0, 1} {
		if got, _ := tree.Lookup("run1", id); !got.Trashed {
			t.Fatalf("id %d not marked trashed", id)
		}
	}
}

func TestTrashDirWithProtectedFilesKeepsThem(t *testing.T) {
	root := filepath.Join(t.TempDir(), "store")
	tree := New(root, "run1", eventbus.New(), trashdir.NewAt(t.TempDir()), nil, logx.Nop())

	c := cached(root, "run1", 0, "Mail", "Inbox")
	tree.Cache(c)

	appDir := filepath.Join(root, "mail")
	settings := filepath.Join(appDir, notification.SettingsFileName)
	if err := os.WriteFile(settings, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	tree.Trash(appDir)

	if _, err := os.Stat(settings); err != nil {
		t.Fatalf("settings file lost: %v", err)
	}
	if _, err := os.Stat(c.Path); !os.IsNotExist(err) {
		t.Fatalf("notification survived: %v", err)
	}
	if got, _ := tree.Lookup("run1", 0); !got.Trashed {
		t.Fatalf("entry not marked trashed")
	}
}

func TestTrashRootClearsEverything(t *testing.T) {
	root := filepath.Join(t.TempDir(), "store")
	tree := New(root, "run1", eventbus.New(), trashdir.NewAt(t.TempDir()), nil, logx.Nop())

	tree.Cache(cached(root, "run1", 0, "Mail", "A"))
	tree.Cache(cached(root, "run1", 1, "Chat", "B"))

	tree.Trash(root)

	if got := tree.UnreadCount("", nil); got != 0 {
		t.Fatalf("unread after root trash = %d", got)
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("root itself must survive: %v", err)
	}
}
