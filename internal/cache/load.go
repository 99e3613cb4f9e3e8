package cache

import (
	"io/fs"
	"os"
	"path/filepath"

	"nottray/internal/eventbus"
	"nottray/internal/notification"
	"nottray/pkg/logx"
)

// LoadExisting scans the storage root and indexes every persisted
// notification. Files that are not valid JSON are skipped, never fatal;
// entries that vanish between listing and read are treated as absent.
// Re-running is safe: folder creation is idempotent and entries are
// overwritten in place.
func (t *Tree) LoadExisting() error {
	t.log.Info("caching existing notifications", logx.String("root", t.root))

	loaded := 0
	skipped := 0
	err := filepath.WalkDir(t.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == t.root {
				return err
			}
			return nil
		}
		if d.IsDir() || !notification.IsNotificationFile(d.Name()) {
			return nil
		}

		b, err := os.ReadFile(path)
		if err != nil {
			// Raced with a delete; absence, not failure.
			return nil
		}
		n, err := notification.Decode(b)
		if err != nil {
			skipped++
			t.log.Warn("skipping malformed notification file", logx.String("path", path), logx.Err(err))
			return nil
		}
		if info, err := d.Info(); err == nil {
			n.At = info.ModTime().UTC()
		}

		entry := &notification.Cached{Notification: n, Path: path}

		t.mu.Lock()
		node := t.ensureFolderLocked(filepath.Dir(path))
		node.notes[d.Name()] = entry
		t.mu.Unlock()

		loaded++
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			// Nothing persisted yet; an empty tree is a valid start state.
			err = nil
		} else {
			return err
		}
	}

	t.log.Info("existing notifications cached", logx.Int("loaded", loaded), logx.Int("skipped", skipped))
	t.publishUpdated()
	return nil
}

// Cache inserts a notification into the tree and, unless it carries the
// transient hint, persists it to its storage path. Persistence failures are
// logged and swallowed: the in-memory tree stays authoritative for the run.
func (t *Tree) Cache(c *notification.Cached) {
	if !c.Transient() {
		if err := t.persist(c); err != nil {
			t.log.Error("failed persisting notification", logx.String("path", c.Path), logx.Err(err))
		}
	}

	t.mu.Lock()
	node := t.ensureFolderLocked(filepath.Dir(c.Path))
	cp := *c
	node.notes[filepath.Base(c.Path)] = &cp
	t.mu.Unlock()

	t.bus.Publish(eventbus.Event{Type: eventbus.TypeCached, Data: eventbus.CachedEvent{
		ID:        c.ID,
		RunID:     c.RunID,
		Path:      c.Path,
		Transient: c.Transient(),
	}})
	t.publishUpdated()
}

func (t *Tree) persist(c *notification.Cached) error {
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return err
	}
	b, err := notification.Encode(&c.Notification)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.Path, b, 0o644); err != nil {
		return err
	}
	t.log.Info("notification written", logx.String("summary", c.Summary), logx.String("path", c.Path))
	return nil
}
