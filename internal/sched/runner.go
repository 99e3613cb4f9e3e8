package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"nottray/pkg/logx"
)

type intervalDef struct {
	name  string
	every time.Duration
	job   func(ctx context.Context)
	state *RunState
}

// Runner triggers named jobs on fixed intervals through the pool. Each job
// has overlap-skip semantics: a tick that fires while the previous run is
// still executing is dropped, never stacked.
type Runner struct {
	mu sync.Mutex

	log  logx.Logger
	pool *Pool

	c    *cron.Cron
	defs []intervalDef

	// one-shot timers (snooze re-submissions)
	tmu    sync.Mutex
	timers map[uint64]*time.Timer
	seq    uint64
}

func NewRunner(pool *Pool, log logx.Logger) *Runner {
	return &Runner{
		log:    log,
		pool:   pool,
		timers: map[uint64]*time.Timer{},
	}
}

// AddInterval registers a job to run every `every`. Must be called before
// Start; the set of periodic jobs is fixed for a run.
func (r *Runner) AddInterval(name string, every time.Duration, job func(ctx context.Context)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = append(r.defs, intervalDef{name: name, every: every, job: job, state: &RunState{}})
}

func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return nil
	}
	r.c = cron.New()
	for i := range r.defs {
		d := r.defs[i]
		spec := fmt.Sprintf("@every %s", d.every.String())
		if _, err := r.c.AddFunc(spec, func() {
			_ = r.pool.SubmitExclusive(d.name, d.state, d.job)
		}); err != nil {
			return fmt.Errorf("register %s: %w", d.name, err)
		}
	}
	r.c.Start()
	r.log.Info("runner started", logx.Int("jobs", len(r.defs)))
	return nil
}

func (r *Runner) Stop() {
	r.mu.Lock()
	c := r.c
	r.c = nil
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}

	r.tmu.Lock()
	for _, t := range r.timers {
		t.Stop()
	}
	r.timers = map[uint64]*time.Timer{}
	r.tmu.Unlock()

	r.log.Info("runner stopped")
}

// After schedules fn once after d, through the pool. Pending timers are
// discarded on Stop; one-shot work is not persisted across runs.
func (r *Runner) After(d time.Duration, name string, fn func(ctx context.Context)) {
	r.tmu.Lock()
	r.seq++
	id := r.seq
	r.timers[id] = time.AfterFunc(d, func() {
		r.tmu.Lock()
		delete(r.timers, id)
		r.tmu.Unlock()
		_ = r.pool.Submit(name, fn)
	})
	r.tmu.Unlock()
}
