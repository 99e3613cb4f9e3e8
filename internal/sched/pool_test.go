package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nottray/pkg/logx"
)

func TestPoolExecutesSubmitted(t *testing.T) {
	p := NewPool(2, 8, logx.Nop())
	p.Start(context.Background())
	defer p.Stop(context.Background())

	var wg sync.WaitGroup
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		if err := p.Submit("t", func(_ context.Context) {
			ran.Add(1)
			wg.Done()
		}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	wg.Wait()
	if ran.Load() != 5 {
		t.Fatalf("ran = %d", ran.Load())
	}
}

func TestPoolSubmitAfterStop(t *testing.T) {
	p := NewPool(1, 4, logx.Nop())
	p.Start(context.Background())
	p.Stop(context.Background())

	if err := p.Submit("t", func(_ context.Context) {}); err != ErrStopped {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestPoolQueueFullDrops(t *testing.T) {
	p := NewPool(1, 1, logx.Nop())
	p.Start(context.Background())
	defer p.Stop(context.Background())

	block := make(chan struct{})
	started := make(chan struct{})
	_ = p.Submit("blocker", func(_ context.Context) {
		close(started)
		<-block
	})
	<-started

	// Fill the queue, then overflow it.
	_ = p.Submit("queued", func(_ context.Context) {})
	var overflowed bool
	for i := 0; i < 4; i++ {
		if p.Submit("overflow", func(_ context.Context) {}) == ErrQueueFull {
			overflowed = true
			break
		}
	}
	close(block)
	if !overflowed {
		t.Fatalf("queue never reported full")
	}
	if p.Dropped() == 0 {
		t.Fatalf("dropped counter not incremented")
	}
}

func TestSubmitExclusiveSkipsOverlap(t *testing.T) {
	p := NewPool(1, 8, logx.Nop())
	p.Start(context.Background())
	defer p.Stop(context.Background())

	state := &RunState{}
	block := make(chan struct{})
	started := make(chan struct{})

	if err := p.SubmitExclusive("job", state, func(_ context.Context) {
		close(started)
		<-block
	}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	<-started

	if err := p.SubmitExclusive("job", state, func(_ context.Context) {}); err != ErrOverlapSkip {
		t.Fatalf("err = %v, want ErrOverlapSkip", err)
	}
	close(block)

	// Released after completion: a later submit must go through.
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := p.SubmitExclusive("job", state, func(_ context.Context) {})
		if err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("state never released: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPoolRecoversFromPanic(t *testing.T) {
	p := NewPool(1, 4, logx.Nop())
	p.Start(context.Background())
	defer p.Stop(context.Background())

	done := make(chan struct{})
	_ = p.Submit("boom", func(_ context.Context) { panic("boom") })
	if err := p.Submit("after", func(_ context.Context) { close(done) }); err != nil {
		t.Fatalf("submit after panic: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker died on panic")
	}
}

func TestRunnerAfterFiresOnce(t *testing.T) {
	p := NewPool(1, 8, logx.Nop())
	p.Start(context.Background())
	defer p.Stop(context.Background())
	r := NewRunner(p, logx.Nop())

	fired := make(chan struct{})
	r.After(10*time.Millisecond, "once", func(_ context.Context) { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("one-shot never fired")
	}
}

func TestRunnerStopCancelsTimers(t *testing.T) {
	p := NewPool(1, 8, logx.Nop())
	p.Start(context.Background())
	defer p.Stop(context.Background())
	r := NewRunner(p, logx.Nop())

	var fired atomic.Bool
	r.After(50*time.Millisecond, "late", func(_ context.Context) { fired.Store(true) })
	r.Stop()

	time.Sleep(100 * time.Millisecond)
	if fired.Load() {
		t.Fatalf("timer survived Stop")
	}
}

func TestRunnerInterval(t *testing.T) {
	p := NewPool(1, 8, logx.Nop())
	p.Start(context.Background())
	defer p.Stop(context.Background())
	r := NewRunner(p, logx.Nop())

	var ticks atomic.Int32
	r.AddInterval("tick", time.Second, func(_ context.Context) { ticks.Add(1) })
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for ticks.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("interval job never ran")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
