package cache

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"nottray/internal/eventbus"
	"nottray/internal/notification"
	"nottray/pkg/logx"
)

// Trash moves path to the platform trash and marks the corresponding tree
// entries trashed.
//
// Semantics, by target:
//   - the storage root: every direct child folder and notification is
//     trashed (scheduled independently through the pool);
//   - a notification file: moved to trash, entry marked trashed;
//   - a path that no longer exists but has a tree entry: the transient
//     case — entry marked trashed without touching disk;
//   - a directory without protected files (settings, sound): moved to trash
//     as a unit, whole subtree marked trashed;
//   - a directory with protected files somewhere below: children are
//     trashed individually so the protected files survive.
//
// Trashing an already-trashed entry only re-asserts the flag; trashed-id
// events fire once per entry, and only for entries of the current run.
// The physical move is best-effort: a failure is logged and the in-memory
// mark stands so UI state stays consistent.
func (t *Tree) Trash(path string) {
	path = filepath.Clean(path)
	t.log.Info("trashing", logx.String("path", path))

	defer t.publishUpdated()

	if path == t.root {
		t.mu.Lock()
		root := t.nodes[t.root]
		targets := make([]string, 0, len(root.children)+len(root.notes))
		for name := range root.children {
			targets = append(targets, filepath.Join(t.root, name))
		}
		for file := range root.notes {
			targets = append(targets, filepath.Join(t.root, file))
		}
		t.mu.Unlock()

		for _, p := range targets {
			t.submitTrash(p)
		}
		return
	}

	st, err := os.Lstat(path)
	switch {
	case err == nil && st.Mode().IsRegular():
		t.trashFile(path)
	case err != nil:
		// Gone from disk, possibly never written: the transient case.
		t.trashMissing(path)
	case st.IsDir():
		t.trashDir(path)
	}
}

func (t *Tree) trashFile(path string) {
	name := filepath.Base(path)
	if !notification.IsNotificationFile(name) {
		return
	}

	if err := t.trasher.Move(path); err != nil {
		t.log.Warn("move to trash failed", logx.String("path", path), logx.Err(err))
	}

	t.markOne(path)
}

func (t *Tree) trashMissing(path string) {
	t.mu.Lock()
	node, ok := t.folderLocked(filepath.Dir(path))
	if !ok {
		t.mu.Unlock()
		t.log.Info("path does not exist, skipping", logx.String("path", path))
		return
	}
	_, present := node.notes[filepath.Base(path)]
	t.mu.Unlock()

	if !present {
		t.log.Info("path does not exist, skipping", logx.String("path", path))
		return
	}
	t.log.Info("marking transient notification as trashed", logx.String("path", path))
	t.markOne(path)
}

// markOne flags a single tree entry trashed and emits the trashed-id event
// on first transition for current-run entries.
func (t *Tree) markOne(path string) {
	var ev *eventbus.TrashedEvent

	t.mu.Lock()
	if node, ok := t.folderLocked(filepath.Dir(path)); ok {
		if c, ok := node.notes[filepath.Base(path)]; ok && !c.Trashed {
			c.Trashed = true
			if c.RunID == t.runID {
				ev = &eventbus.TrashedEvent{ID: c.ID, RunID: c.RunID, Path: c.Path}
			}
		}
	}
	t.mu.Unlock()

	if ev != nil {
		t.bus.Publish(eventbus.Event{Type: eventbus.TypeTrashed, Data: *ev})
	}
}

func (t *Tree) trashDir(path string) {
	if !hasProtectedFiles(path) {
		if err := t.trasher.Move(path); err != nil {
			t.log.Warn("move to trash failed", logx.String("path", path), logx.Err(err))
		}

		var events []eventbus.TrashedEvent
		t.mu.Lock()
		if node, ok := t.folderLocked(path); ok {
			events = t.markSubtreeLocked(node)
		}
		t.mu.Unlock()

		for _, ev := range events {
			t.bus.Publish(eventbus.Event{Type: eventbus.TypeTrashed, Data: ev})
		}
		return
	}

	// Protected files below: recurse child by child so they survive.
	t.mu.Lock()
	node, ok := t.folderLocked(path)
	var targets []string
	if ok {
		targets = make([]string, 0, len(node.children)+len(node.notes))
		for name := range node.children {
			targets = append(targets, filepath.Join(path, name))
		}
		for file := range node.notes {
			targets = append(targets, filepath.Join(path, file))
		}
	}
	t.mu.Unlock()

	for _, p := range targets {
		t.submitTrash(p)
	}
}

func (t *Tree) markSubtreeLocked(node *folderNode) []eventbus.TrashedEvent {
	var events []eventbus.TrashedEvent
	for _, c := range node.notes {
		if !c.Trashed {
			c.Trashed = true
			if c.RunID == t.runID {
				events = append(events, eventbus.TrashedEvent{ID: c.ID, RunID: c.RunID, Path: c.Path})
			}
		}
	}
	for name := range node.children {
		if child, ok := t.nodes[filepath.Join(node.path, name)]; ok {
			events = append(events, t.markSubtreeLocked(child)...)
		}
	}
	return events
}

// submitTrash schedules a child trash through the worker pool. Sibling
// operations are independent; each re-enters Trash and reacquires the
// writer lock. When the pool is unavailable the call degrades to inline
// recursion rather than losing the operation.
func (t *Tree) submitTrash(path string) {
	if t.pool == nil {
		t.Trash(path)
		return
	}
	if err := t.pool.Submit("cache.trash", func(_ context.Context) { t.Trash(path) }); err != nil {
		t.Trash(path)
	}
}

// TrashAsync runs Trash on the worker pool so latency-sensitive callers do
// not wait on the Lstat and rename. Degrades to a goroutine when no pool is
// attached or the queue is full; the operation is never lost.
func (t *Tree) TrashAsync(path string) {
	if t.pool == nil {
		go t.Trash(path)
		return
	}
	if err := t.pool.Submit("cache.trash", func(_ context.Context) { t.Trash(path) }); err != nil {
		go t.Trash(path)
	}
}

// hasProtectedFiles reports whether dir recursively contains a settings or
// sound file, which protects it from bulk deletion.
func hasProtectedFiles(dir string) bool {
	found := false
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			name := d.Name()
			if name == notification.SettingsFileName || name == notification.SoundFileName {
				found = true
				return filepath.SkipAll
			}
		}
		return nil
	})
	return found
}
