package policy

import (
	"context"
	"errors"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"nottray/internal/notification"
	"nottray/pkg/logx"
)

var errWatcherClosed = errors.New("fsnotify watcher closed")

// Watcher keeps the resolver's caches in sync with on-disk settings files.
// It watches every directory under the root so settings edits, creations and
// deletions anywhere in the tree are picked up without a rescan.
type Watcher struct {
	resolver *Resolver
	log      logx.Logger

	// debounce per folder to ride out editors that write in several steps
	timerMu sync.Mutex
	timers  map[string]*time.Timer
}

func NewWatcher(resolver *Resolver, log logx.Logger) *Watcher {
	return &Watcher{
		resolver: resolver,
		log:      log,
		timers:   map[string]*time.Timer{},
	}
}

// Watch runs until ctx is cancelled. When fsnotify gets into a bad state the
// watcher is recreated with a small exponential backoff.
func (w *Watcher) Watch(ctx context.Context) error {
	const (
		restartBackoffBase = 250 * time.Millisecond
		restartBackoffMax  = 5 * time.Second
		debounceDelay      = 250 * time.Millisecond
	)
	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for {
		err := w.watchOnce(ctx, debounceDelay)
		if ctx.Err() != nil {
			w.stopTimers()
			return ctx.Err()
		}
		w.log.Warn("settings watcher restarting", logx.Err(err), logx.Duration("backoff", backoff))

		jitter := time.Duration(rng.Int63n(int64(backoff) / 4))
		select {
		case <-ctx.Done():
			w.stopTimers()
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
		backoff *= 2
		if backoff > restartBackoffMax {
			backoff = restartBackoffMax
		}
	}
}

func (w *Watcher) watchOnce(ctx context.Context, debounceDelay time.Duration) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addTree(fw, w.resolver.Root()); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return errWatcherClosed
			}
			w.handleEvent(fw, ev, debounceDelay)
		case err, ok := <-fw.Errors:
			if !ok {
				return errWatcherClosed
			}
			if err != nil {
				w.log.Debug("settings watcher error", logx.Err(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event, debounceDelay time.Duration) {
	if filepath.Base(ev.Name) == notification.SettingsFileName {
		w.scheduleRefresh(filepath.Dir(ev.Name), debounceDelay)
		return
	}

	// New directories must join the watch set, or settings created inside
	// them later would go unseen.
	if ev.Op.Has(fsnotify.Create) {
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			if err := w.addTree(fw, ev.Name); err != nil {
				w.log.Debug("watch add failed", logx.String("dir", ev.Name), logx.Err(err))
			}
		}
	}
}

func (w *Watcher) scheduleRefresh(folder string, delay time.Duration) {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if t, ok := w.timers[folder]; ok {
		t.Stop()
	}
	w.timers[folder] = time.AfterFunc(delay, func() {
		w.resolver.RefreshFolder(folder)
		w.log.Debug("settings refreshed", logx.String("folder", folder))
	})
}

func (w *Watcher) stopTimers() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = map[string]*time.Timer{}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Vanished between listing and visit; not an error.
			return nil
		}
		if d.IsDir() {
			if err := fw.Add(path); err != nil {
				w.log.Debug("watch add failed", logx.String("dir", path), logx.Err(err))
			}
		}
		return nil
	})
}
