// Package notify decides what reaches the screen.
//
// Candidates flow in from live reception, catch-up sweeps and snooze timers;
// admission applies the folder policies (do-not-disturb, backoff), survivors
// are coalesced into a single display unit, and active units are tracked so
// closes and actions can be routed back. The package never propagates a
// display failure to its caller: anything that goes wrong is reported through
// a rate-limited on-screen error unit.
package notify

import (
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"nottray/internal/cache"
	"nottray/internal/display"
	"nottray/internal/eventbus"
	"nottray/internal/notification"
	"nottray/internal/policy"
	"nottray/internal/sched"
	"nottray/pkg/logx"
)

// Floor values for the display expiry, milliseconds. Batch units stay up
// near-indefinitely so the user can work through the backlog.
const (
	minExpireDirect = 5000
	minExpireBatch  = 9999999
)

type activeKey struct {
	runID string
	id    int
}

type activeUnit struct {
	handle display.Handle
	unit   display.Unit
	// source is the representative cached notification, kept so snooze can
	// re-submit it later. Nil for coalesced batch units.
	source *notification.Cached
}

// Notifier is the admission and display scheduler.
type Notifier struct {
	root      string
	runID     string
	startedAt time.Time

	tree     *cache.Tree
	resolver *policy.Resolver
	surface  display.Surface
	runner   *sched.Runner
	bus      eventbus.Bus
	log      logx.Logger

	mu           sync.Mutex
	lastNotified map[string]int // folder path -> highest displayed id
	active       map[activeKey]*activeUnit
	byHandle     map[display.Handle]activeKey

	errLimiter *rate.Limiter
	now        func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(tree *cache.Tree, resolver *policy.Resolver, surface display.Surface, runner *sched.Runner, bus eventbus.Bus, log logx.Logger) *Notifier {
	return &Notifier{
		root:         tree.Root(),
		runID:        tree.RunID(),
		startedAt:    time.Now(),
		tree:         tree,
		resolver:     resolver,
		surface:      surface,
		runner:       runner,
		bus:          bus,
		log:          log,
		lastNotified: map[string]int{},
		active:       map[activeKey]*activeUnit{},
		byHandle:     map[display.Handle]activeKey{},
		errLimiter:   rate.NewLimiter(rate.Every(30*time.Second), 1),
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
}

// Start begins consuming surface events. Must be called once before any
// notification is submitted if surface feedback matters.
func (n *Notifier) Start() {
	n.wg.Add(1)
	go n.loop()
}

// Stop detaches from the surface event stream and waits for the loop.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() { close(n.stopCh) })
	n.wg.Wait()
}

func (n *Notifier) loop() {
	defer n.wg.Done()
	events := n.surface.Events()
	for {
		select {
		case <-n.stopCh:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			n.dispatch(ev)
		}
	}
}

func (n *Notifier) dispatch(ev display.Event) {
	switch ev.Kind {
	case display.EventDisplayed:
		n.onDisplayed(ev.Handle)
	case display.EventClosed:
		n.closeByHandle(ev.Handle, ev.Reason)
	case display.EventSnoozed:
		n.snoozeByHandle(ev.Handle, time.Duration(ev.SnoozeMs)*time.Millisecond)
	case display.EventActionInvoked:
		n.onAction(ev.Handle, ev.ActionKey)
	}
}

func (n *Notifier) onDisplayed(h display.Handle) {
	n.mu.Lock()
	key, ok := n.byHandle[h]
	var u display.Unit
	if ok {
		u = n.active[key].unit
	}
	n.mu.Unlock()
	if !ok || key.runID != n.runID {
		// Displays of prior-run notifications do not feed the live stream.
		return
	}
	n.bus.Publish(eventbus.Event{Type: eventbus.TypeDisplayed, Data: eventbus.DisplayedEvent{
		ID:      u.ID,
		AppName: u.AppName,
		Summary: u.Summary,
		Body:    u.Body,
	}})
}

func (n *Notifier) onAction(h display.Handle, key string) {
	n.mu.Lock()
	ak, ok := n.byHandle[h]
	n.mu.Unlock()
	if !ok || ak.runID != n.runID {
		return
	}
	n.bus.Publish(eventbus.Event{Type: eventbus.TypeActionInvoked, Data: eventbus.ActionEvent{
		ID:  ak.id,
		Key: key,
	}})
}

// SetNow overrides the clock, for tests.
func (n *Notifier) SetNow(now func() time.Time) { n.now = now }

// StartedAt returns the moment this run began; the post-quiet-hours sweep
// pivots on it.
func (n *Notifier) StartedAt() time.Time { return n.startedAt }

func folderOf(c *notification.Cached) string {
	return filepath.Dir(c.Path)
}
