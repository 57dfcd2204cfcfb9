// Package memqueue is an in-process implementation of the message queue
// port. Delivery is asynchronous and at-least-once within the process:
// a failing handler is retried up to maxRetries times, then the message is
// dropped with an error log.
package memqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Strob0t/Switchboard/internal/logger"
	"github.com/Strob0t/Switchboard/internal/port/messagequeue"
)

const maxRetries = 3

// ErrClosed is returned by Publish after Drain or Close.
var ErrClosed = errors.New("memqueue: closed")

type subscription struct {
	id      int
	handler messagequeue.Handler
}

// Queue implements messagequeue.Queue.
type Queue struct {
	retryDelay time.Duration

	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID int
	closed bool

	// inflight counts running deliveries; idle is signalled when it
	// drops to zero.
	pending  sync.Mutex
	idle     *sync.Cond
	inflight int
}

// New returns an open queue. retryDelay is the pause before redelivering
// to a handler that returned an error.
func New(retryDelay time.Duration) *Queue {
	q := &Queue{retryDelay: retryDelay, subs: make(map[string][]subscription)}
	q.idle = sync.NewCond(&q.pending)
	return q
}

// Publish validates data and hands it to every subscriber of subject.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := messagequeue.Validate(subject, data); err != nil {
		return fmt.Errorf("memqueue publish %s: %w", subject, err)
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	hctx := context.Background()
	if id := logger.RequestID(ctx); id != "" {
		hctx = logger.WithRequestID(hctx, id)
	}
	payload := append([]byte(nil), data...)
	for _, s := range q.subs[subject] {
		q.track(1)
		go q.deliver(hctx, subject, payload, s.handler)
	}
	return nil
}

func (q *Queue) deliver(ctx context.Context, subject string, data []byte, h messagequeue.Handler) {
	defer q.track(-1)
	for attempt := 0; ; attempt++ {
		err := h(ctx, subject, data)
		if err == nil {
			return
		}
		slog.Error("message handler failed", "subject", subject, "attempt", attempt+1, "error", err)
		if attempt >= maxRetries {
			slog.Error("message dropped", "subject", subject)
			return
		}
		time.Sleep(q.retryDelay)
	}
}

// Subscribe registers handler for subject.
func (q *Queue) Subscribe(_ context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrClosed
	}
	q.nextID++
	id := q.nextID
	q.subs[subject] = append(q.subs[subject], subscription{id: id, handler: handler})

	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		list := q.subs[subject]
		for i, s := range list {
			if s.id == id {
				q.subs[subject] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}, nil
}

// Drain stops accepting messages and waits for in-flight deliveries.
// Messages published by handlers during the drain are still delivered.
func (q *Queue) Drain() error {
	q.wait()
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wait()
	return nil
}

func (q *Queue) track(delta int) {
	q.pending.Lock()
	q.inflight += delta
	if q.inflight == 0 {
		q.idle.Broadcast()
	}
	q.pending.Unlock()
}

func (q *Queue) wait() {
	q.pending.Lock()
	for q.inflight > 0 {
		q.idle.Wait()
	}
	q.pending.Unlock()
}

// Close stops accepting messages without waiting.
func (q *Queue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return nil
}

// IsConnected reports whether the queue accepts messages.
func (q *Queue) IsConnected() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return !q.closed
}
