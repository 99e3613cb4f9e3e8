// Package cache maintains the in-memory mirror of the on-disk notification
// store.
//
// The tree is stored as a flat arena: every folder lives in one map keyed by
// its cleaned absolute path, with parent/child relationships expressed as
// path associations. That keeps snapshot reads cheap and avoids recursive
// ownership. All mutation is serialized through a single mutex; trash
// recursion fans out through the shared worker pool but each task re-enters
// the public API and therefore the same writer discipline.
package cache

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"nottray/internal/eventbus"
	"nottray/internal/notification"
	"nottray/internal/sched"
	"nottray/internal/trashdir"
	"nottray/pkg/logx"
)

type folderNode struct {
	path     string
	children map[string]struct{}                // child folder names
	notes    map[string]*notification.Cached    // filename -> entry
}

func newFolderNode(path string) *folderNode {
	return &folderNode{
		path:     path,
		children: map[string]struct{}{},
		notes:    map[string]*notification.Cached{},
	}
}

// Tree is the cache tree. The zero value is not usable; construct with New.
type Tree struct {
	root  string
	runID string

	mu    sync.Mutex
	nodes map[string]*folderNode

	bus     eventbus.Bus
	trasher *trashdir.Trasher
	pool    *sched.Pool
	log     logx.Logger
}

func New(root, runID string, bus eventbus.Bus, trasher *trashdir.Trasher, pool *sched.Pool, log logx.Logger) *Tree {
	root = filepath.Clean(root)
	t := &Tree{
		root:    root,
		runID:   runID,
		nodes:   map[string]*folderNode{root: newFolderNode(root)},
		bus:     bus,
		trasher: trasher,
		pool:    pool,
		log:     log,
	}
	t.log.Info("cache tree started", logx.String("root", root), logx.String("run_id", runID))
	return t
}

// Root returns the storage root path.
func (t *Tree) Root() string { return t.root }

// RunID returns the current process run identifier.
func (t *Tree) RunID() string { return t.runID }

// ensureFolderLocked creates the folder chain from root to dir, registering
// each node with its parent. Idempotent: existing nodes are reused, so
// re-scans never duplicate folders. Folder nodes may exist without a
// directory on disk; that is a valid state, not an error.
func (t *Tree) ensureFolderLocked(dir string) *folderNode {
	dir = filepath.Clean(dir)
	if node, ok := t.nodes[dir]; ok {
		return node
	}
	rel, err := filepath.Rel(t.root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		// Outside the root; index it standalone rather than fail.
		node := newFolderNode(dir)
		t.nodes[dir] = node
		return node
	}

	cur := t.nodes[t.root]
	p := t.root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "" || part == "." {
			continue
		}
		p = filepath.Join(p, part)
		node, ok := t.nodes[p]
		if !ok {
			node = newFolderNode(p)
			t.nodes[p] = node
		}
		cur.children[part] = struct{}{}
		cur = node
	}
	return cur
}

// folderLocked returns the node for dir without creating it.
func (t *Tree) folderLocked(dir string) (*folderNode, bool) {
	node, ok := t.nodes[filepath.Clean(dir)]
	return node, ok
}

// FolderView is an immutable snapshot of one folder subtree. Notification
// values are copies; mutating them does not touch the tree.
type FolderView struct {
	Path          string
	Folders       []FolderView
	Notifications []notification.Cached
}

// Snapshot returns a deep copy of the subtree rooted at dir (the tree root
// when dir is empty). ok is false when the folder is not indexed.
func (t *Tree) Snapshot(dir string) (FolderView, bool) {
	if dir == "" {
		dir = t.root
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	node, ok := t.folderLocked(dir)
	if !ok {
		return FolderView{}, false
	}
	return t.viewLocked(node), true
}

func (t *Tree) viewLocked(node *folderNode) FolderView {
	v := FolderView{Path: node.path}

	names := make([]string, 0, len(node.children))
	for name := range node.children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if child, ok := t.nodes[filepath.Join(node.path, name)]; ok {
			v.Folders = append(v.Folders, t.viewLocked(child))
		}
	}

	files := make([]string, 0, len(node.notes))
	for f := range node.notes {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		v.Notifications = append(v.Notifications, *node.notes[f])
	}
	return v
}

// Lookup returns a copy of the entry addressed by (run id, id) anywhere in
// the tree. Addressing always uses the pair; ids alone collide across runs.
func (t *Tree) Lookup(runID string, id int) (notification.Cached, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, node := range t.nodes {
		if c, ok := node.notes[notification.FileName(runID, id)]; ok && c.RunID == runID && c.ID == id {
			return *c, true
		}
	}
	return notification.Cached{}, false
}

// UnreadCount counts non-trashed notifications under dir, skipping subtrees
// for which hidden reports true. Feeds the tray badge.
func (t *Tree) UnreadCount(dir string, hidden func(folder string) bool) int {
	if dir == "" {
		dir = t.root
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	node, ok := t.folderLocked(dir)
	if !ok {
		return 0
	}
	return t.countLocked(node, hidden)
}

func (t *Tree) countLocked(node *folderNode, hidden func(folder string) bool) int {
	if hidden != nil && hidden(node.path) {
		return 0
	}
	n := 0
	for _, c := range node.notes {
		if !c.Trashed {
			n++
		}
	}
	for name := range node.children {
		if child, ok := t.nodes[filepath.Join(node.path, name)]; ok {
			n += t.countLocked(child, hidden)
		}
	}
	return n
}

func (t *Tree) publishUpdated() {
	t.bus.Publish(eventbus.Event{Type: eventbus.TypeCacheUpdated})
}
