package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher runs delayed follow-up work such as the re-dispatch after a
// handoff. Close runs every pending task immediately, and work scheduled
// after Close runs at once, so no handoff is lost while the bus drains.
type Dispatcher struct {
	mu      sync.Mutex
	pending map[uint64]*delayedTask
	nextID  uint64
	closed  bool
	running sync.WaitGroup
}

type delayedTask struct {
	timer *time.Timer
	ctx   context.Context
	fn    func(ctx context.Context)
}

// NewDispatcher returns an open Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{pending: make(map[uint64]*delayedTask)}
}

// Schedule runs fn after delay with a context detached from ctx's
// cancellation but carrying its values. After Close, fn runs before
// Schedule returns.
func (d *Dispatcher) Schedule(ctx context.Context, delay time.Duration, fn func(ctx context.Context)) {
	task := &delayedTask{ctx: context.WithoutCancel(ctx), fn: fn}

	d.mu.Lock()
	if d.closed {
		d.running.Add(1)
		d.mu.Unlock()
		d.run(task)
		return
	}
	d.nextID++
	id := d.nextID
	d.pending[id] = task
	d.running.Add(1)
	task.timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		_, ok := d.pending[id]
		delete(d.pending, id)
		d.mu.Unlock()
		if ok {
			d.run(task)
		}
	})
	d.mu.Unlock()
}

func (d *Dispatcher) run(t *delayedTask) {
	defer d.running.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(t.ctx, "delayed task panicked", "panic", r)
		}
	}()
	t.fn(t.ctx)
}

// Pending returns the number of tasks waiting for their delay.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close stops accepting work, runs every pending task now and waits for
// all tasks to finish or ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	flush := make([]*delayedTask, 0, len(d.pending))
	for id, t := range d.pending {
		// A timer that already fired is waiting on d.mu and runs its task.
		if t.timer.Stop() {
			flush = append(flush, t)
			delete(d.pending, id)
		}
	}
	d.mu.Unlock()

	if len(flush) > 0 {
		slog.Info("flushing delayed tasks", "count", len(flush))
	}
	for _, t := range flush {
		d.run(t)
	}

	done := make(chan struct{})
	go func() {
		d.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
