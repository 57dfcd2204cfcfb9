package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Closer flushes pending log records and stops background writers.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// queue is the state shared by a bufferedHandler and every handler derived
// from it through WithAttrs or WithGroup.
type queue struct {
	mu      sync.RWMutex
	closed  bool
	ch      chan entry
	wg      sync.WaitGroup
	dropped atomic.Int64
}

type entry struct {
	h   slog.Handler
	rec slog.Record
}

// bufferedHandler hands records to a pool of writer goroutines so request
// and bus handlers never wait on stdout. Debug and info records are dropped
// when the buffer is full; warnings and errors wait for room.
type bufferedHandler struct {
	inner slog.Handler
	q     *queue
}

// newBufferedHandler starts workers writers draining a buffer of size records.
func newBufferedHandler(inner slog.Handler, size, workers int) *bufferedHandler {
	q := &queue{ch: make(chan entry, size)}
	for range max(workers, 1) {
		q.wg.Add(1)
		go q.run()
	}
	return &bufferedHandler{inner: inner, q: q}
}

func (q *queue) run() {
	defer q.wg.Done()
	for e := range q.ch {
		_ = e.h.Handle(context.Background(), e.rec)
	}
}

func (h *bufferedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *bufferedHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler signature
	h.q.mu.RLock()
	defer h.q.mu.RUnlock()
	if h.q.closed {
		// Late records after Close go straight through.
		return h.inner.Handle(ctx, rec)
	}

	e := entry{h: h.inner, rec: rec.Clone()}
	if rec.Level >= slog.LevelWarn {
		h.q.ch <- e
		return nil
	}
	select {
	case h.q.ch <- e:
	default:
		h.q.dropped.Add(1)
	}
	return nil
}

func (h *bufferedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &bufferedHandler{inner: h.inner.WithAttrs(attrs), q: h.q}
}

func (h *bufferedHandler) WithGroup(name string) slog.Handler {
	return &bufferedHandler{inner: h.inner.WithGroup(name), q: h.q}
}

// Dropped reports how many records were discarded because the buffer was full.
func (h *bufferedHandler) Dropped() int64 {
	return h.q.dropped.Load()
}

// Close waits for buffered records to be written. If any were dropped a
// final warning carrying the count is written synchronously.
func (h *bufferedHandler) Close() {
	h.q.mu.Lock()
	if h.q.closed {
		h.q.mu.Unlock()
		return
	}
	h.q.closed = true
	close(h.q.ch)
	h.q.mu.Unlock()

	h.q.wg.Wait()

	if n := h.q.dropped.Load(); n > 0 {
		rec := slog.NewRecord(time.Now(), slog.LevelWarn, "log records dropped", 0)
		rec.AddAttrs(slog.Int64("dropped", n))
		_ = h.inner.Handle(context.Background(), rec)
	}
}
