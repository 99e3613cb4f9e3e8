// Package sched provides the daemon's execution plumbing: a bounded
// panic-safe worker pool and a cron-backed interval runner. Everything that
// mutates shared state (batch sweeps, trash recursion, settings refresh)
// funnels through here instead of spawning fire-and-forget goroutines.
package sched

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"nottray/pkg/logx"
)

var (
	ErrStopped     = errors.New("sched: pool stopped")
	ErrQueueFull   = errors.New("sched: queue full")
	ErrOverlapSkip = errors.New("sched: task skipped, previous run still active")
)

type task struct {
	name  string
	run   func(ctx context.Context)
	state *RunState
	track bool
}

// RunState tracks whether a task is already in-flight or queued, so
// overlap-skipping submissions can refuse to pile up.
type RunState struct {
	mu       sync.Mutex
	inflight int
}

func (s *RunState) tryAcquire() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight > 0 {
		return false
	}
	s.inflight++
	return true
}

func (s *RunState) release() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.inflight > 0 {
		s.inflight--
	}
	s.mu.Unlock()
}

// Pool executes submitted tasks on a fixed set of workers over a bounded
// queue. Submit is non-blocking; a full queue drops the task.
type Pool struct {
	mu sync.Mutex

	log     logx.Logger
	workers int
	size    int

	queue    chan task
	stopCh   chan struct{}
	workerWG sync.WaitGroup

	dropped atomic.Uint64
}

func NewPool(workers, queueSize int, log logx.Logger) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Pool{log: log, workers: workers, size: queueSize}
}

func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh != nil {
		return
	}
	p.stopCh = make(chan struct{})
	// Fresh queue per run so stale items never execute after a stop/start.
	p.queue = make(chan task, p.size)

	stopCh := p.stopCh
	queue := p.queue

	p.workerWG.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		idx := i
		go func() {
			defer p.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					p.log.Error("panic in pool worker", logx.Int("worker", idx), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
				}
			}()
			p.worker(ctx, stopCh, queue)
		}()
	}
	p.log.Info("pool started", logx.Int("workers", p.workers), logx.Int("queue_size", p.size))
}

func (p *Pool) Stop(ctx context.Context) {
	p.mu.Lock()
	if p.stopCh == nil {
		p.mu.Unlock()
		return
	}
	stopCh := p.stopCh
	p.stopCh = nil
	p.queue = nil
	p.mu.Unlock()

	close(stopCh)

	done := make(chan struct{})
	go func() {
		p.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		// stop continues in background
	}
}

// Submit enqueues fn for execution. Non-blocking: a full queue returns
// ErrQueueFull and drops the task.
func (p *Pool) Submit(name string, fn func(ctx context.Context)) error {
	return p.submit(task{name: name, run: fn})
}

// SubmitExclusive enqueues fn unless a task sharing state is already queued
// or running.
func (p *Pool) SubmitExclusive(name string, state *RunState, fn func(ctx context.Context)) error {
	if !state.tryAcquire() {
		p.log.Debug("task skipped (overlap)", logx.String("task", name))
		return ErrOverlapSkip
	}
	return p.submit(task{name: name, run: fn, state: state, track: true})
}

func (p *Pool) submit(t task) error {
	p.mu.Lock()
	q := p.queue
	p.mu.Unlock()

	if q == nil {
		if t.track {
			t.state.release()
		}
		return ErrStopped
	}
	select {
	case q <- t:
		return nil
	default:
		if t.track {
			t.state.release()
		}
		p.dropped.Add(1)
		p.log.Warn("pool queue full; dropping task", logx.String("task", t.name), logx.Int("queue_len", len(q)), logx.Int("queue_cap", cap(q)))
		return ErrQueueFull
	}
}

// Dropped returns the lifetime count of dropped tasks.
func (p *Pool) Dropped() uint64 { return p.dropped.Load() }

func (p *Pool) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan task) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			p.execOne(ctx, t)
		}
	}
}

func (p *Pool) execOne(ctx context.Context, t task) {
	start := time.Now()
	if t.track {
		defer t.state.release()
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("panic in task", logx.String("task", t.name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()

	t.run(ctx)

	dur := time.Since(start)
	if dur >= 750*time.Millisecond {
		p.log.Info("task completed", logx.String("task", t.name), logx.Duration("dur", dur))
	} else {
		p.log.Debug("task completed", logx.String("task", t.name), logx.Duration("dur", dur))
	}
}
