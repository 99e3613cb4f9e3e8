// Package app assembles the daemon: config, logging, worker pool, cache
// tree, policy resolver, display scheduler and the optional journal, and
// owns their start/stop ordering.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"nottray/internal/cache"
	"nottray/internal/config"
	"nottray/internal/display"
	"nottray/internal/eventbus"
	"nottray/internal/journal"
	"nottray/internal/notification"
	"nottray/internal/notify"
	"nottray/internal/policy"
	"nottray/internal/sched"
	"nottray/internal/trashdir"
	logx "nottray/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	runID string

	pool     *sched.Pool
	runner   *sched.Runner
	tree     *cache.Tree
	resolver *policy.Resolver
	watcher  *policy.Watcher
	surface  display.Surface
	notifier *notify.Notifier
	store    journal.Store
	recorder *journal.Recorder

	mu     sync.Mutex
	nextID int

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup

	stopOnce sync.Once
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		return c.Validate()
	})

	root := cfg.EffectiveRoot()
	runID := notification.NewRunID()
	bus := eventbus.New()

	pool := sched.NewPool(cfg.EffectiveWorkers(), cfg.EffectiveQueueSize(),
		log.With(logx.String("comp", "pool")))
	runner := sched.NewRunner(pool, log.With(logx.String("comp", "runner")))

	trasher := trashdir.New()
	tree := cache.New(root, runID, bus, trasher, pool,
		log.With(logx.String("comp", "cache")))

	resolver := policy.NewResolver(root, log.With(logx.String("comp", "policy")))
	watcher := policy.NewWatcher(resolver, log.With(logx.String("comp", "policy")))

	surface, err := newSurface(cfg.Display.Backend, log.With(logx.String("comp", "display")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	notifier := notify.New(tree, resolver, surface, runner, bus,
		log.With(logx.String("comp", "notify")))

	a := &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		runID:    runID,
		pool:     pool,
		runner:   runner,
		tree:     tree,
		resolver: resolver,
		watcher:  watcher,
		surface:  surface,
		notifier: notifier,
	}

	if store, err := a.openJournal(cfg); err != nil {
		log.Warn("journal unavailable, continuing without", logx.Err(err))
	} else if store != nil {
		a.store = store
		a.recorder = journal.NewRecorder(store, bus, log.With(logx.String("comp", "journal")))
	}
	return a, nil
}

func newSurface(backend string, log logx.Logger) (display.Surface, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "stub":
		return display.NewStub(), nil
	case "", "auto", "dbus":
		return display.New(log)
	default:
		return nil, fmt.Errorf("unknown display backend %q", backend)
	}
}

func (a *App) openJournal(cfg *config.Config) (journal.Store, error) {
	busy, _ := config.ParseDurationField("journal.busy_timeout", cfg.Journal.BusyTimeout)
	retention, _ := config.ParseDurationField("journal.retention", cfg.Journal.Retention)
	return journal.Open(journal.Config{
		Driver:      cfg.Journal.Driver,
		Path:        cfg.Journal.Path,
		BusyTimeout: busy,
		Retention:   retention,
	}, a.log.With(logx.String("comp", "journal")))
}

// Start brings up the pipeline: pool, scan of persisted notifications and
// settings, filesystem watchers, the catch-up sweep and the display event
// loop. Background watchers run until Stop.
func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgm.Get()

	a.pool.Start(ctx)
	if a.recorder != nil {
		a.recorder.Start()
	}
	a.notifier.Start()

	if err := a.tree.LoadExisting(); err != nil {
		return fmt.Errorf("load existing notifications: %w", err)
	}
	a.resolver.LoadAll()

	bgCtx, cancel := context.WithCancel(context.Background())
	a.bgCancel = cancel

	a.bgWG.Add(1)
	go func() {
		defer a.bgWG.Done()
		_ = a.watcher.Watch(bgCtx)
	}()
	a.bgWG.Add(1)
	go func() {
		defer a.bgWG.Done()
		_ = a.cfgm.Watch(bgCtx)
	}()
	a.bgWG.Add(1)
	go func() {
		defer a.bgWG.Done()
		a.watchConfigUpdates(bgCtx)
	}()

	if cfg.SweepEnabled() {
		interval, err := cfg.SweepInterval()
		if err != nil {
			return err
		}
		a.runner.AddInterval("notify.sweep", interval, a.sweep)
	}
	if err := a.runner.Start(ctx); err != nil {
		return err
	}

	a.log.Info("daemon started",
		logx.String("root", a.tree.Root()),
		logx.String("run_id", a.runID))
	return nil
}

// sweep reloads folder settings and then re-runs catch-up admission, so a
// settings change the watcher missed is picked up by the next tick at the
// latest.
func (a *App) sweep(_ context.Context) {
	a.resolver.LoadAll()
	a.notifier.BatchNotify()
}

// Stop tears down in reverse order. Safe to call more than once.
func (a *App) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		if a.bgCancel != nil {
			a.bgCancel()
		}
		a.runner.Stop()
		a.notifier.CloseAll()
		a.notifier.Stop()
		a.pool.Stop(ctx)
		if a.recorder != nil {
			a.recorder.Stop()
		}
		if a.store != nil {
			_ = a.store.Close()
		}
		a.bgWG.Wait()
		a.log.Info("daemon stopped")
		a.logs.Close()
	})
	return nil
}

// watchConfigUpdates applies hot-reloadable sections; the rest logs a
// restart-required notice.
func (a *App) watchConfigUpdates(ctx context.Context) {
	ch := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(ch)

	old := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-ch:
			if !ok {
				return
			}
			changed, attrs := config.SummarizeConfigChange(old, cfg)
			if len(changed) == 0 {
				continue
			}
			a.log.Info("config updated",
				append([]logx.Field{logx.Any("sections", changed)}, attrs...)...)

			for _, section := range changed {
				switch section {
				case "logging":
					a.logs.Apply(logx.Config{
						Level:   cfg.Logging.Level,
						Console: cfg.Logging.Console,
						File: logx.FileConfig{
							Enabled: cfg.Logging.File.Enabled,
							Path:    cfg.Logging.File.Path,
						},
					})
				default:
					a.log.Warn("config section requires restart",
						logx.String("section", section))
				}
			}
			old = cfg
		}
	}
}

// RunID returns this process run identifier.
func (a *App) RunID() string { return a.runID }

// Tree exposes the cache tree for UI layers.
func (a *App) Tree() *cache.Tree { return a.tree }

// Bus exposes the event bus for UI layers.
func (a *App) Bus() eventbus.Bus { return a.bus }

// Resolver exposes the policy resolver for settings editors.
func (a *App) Resolver() *policy.Resolver { return a.resolver }

// Submit receives one notification from a sender, assigns its per-run id,
// persists it and runs it through admission. Returns the assigned id; never
// an error, matching fire-and-forget reception.
func (a *App) Submit(n notification.Notification) int {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.mu.Unlock()

	n.ID = id
	n.RunID = a.runID
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}

	c := &notification.Cached{
		Notification: n,
		Path:         notification.DefaultResolver(a.tree.Root(), &n),
	}
	a.tree.Cache(c)
	a.notifier.Notify([]notification.Cached{*c}, false)
	return id
}

// CloseByID closes an active display of the current run.
func (a *App) CloseByID(id int, reason notification.CloseReason) {
	a.notifier.CloseByID(id, reason)
}

// TrashPath moves a notification, folder or the whole store to the trash.
func (a *App) TrashPath(path string) {
	a.tree.Trash(path)
}

// UnreadCount is the tray badge: non-trashed notifications outside folders
// currently hidden from the tray.
func (a *App) UnreadCount() int {
	return a.tree.UnreadCount("", a.resolver.HideFromTrayActive)
}
