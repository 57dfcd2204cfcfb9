package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("service unavailable")

func TestClosedStateAllowsCalls(t *testing.T) {
	b := NewBreaker(3, time.Second)
	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !called {
		t.Fatal("expected fn to be called")
	}
}

func TestOpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(3, time.Second)

	for i := 0; i < 3; i++ {
		_ = b.Execute(func() error { return errTest })
	}

	err := b.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("expected open, got %s", got)
	}
}

func TestTransitionsToHalfOpenAfterTimeout(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }

	// Trip the breaker
	for i := 0; i < 2; i++ {
		_ = b.Execute(func() error { return errTest })
	}

	// Advance past timeout
	now = now.Add(2 * time.Second)
	if got := b.State(); got != StateHalfOpen {
		t.Fatalf("expected half_open, got %s", got)
	}

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error in half-open, got %v", err)
	}
	if !called {
		t.Fatal("expected fn to be called in half-open")
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("expected closed after half-open success, got %s", got)
	}
}

func TestHalfOpenAdmitsSingleProbe(t *testing.T) {
	now := time.Now()
	b := NewBreaker(1, time.Second)
	b.now = func() time.Time { return now }
	_ = b.Execute(func() error { return errTest })
	now = now.Add(2 * time.Second)

	trialStarted := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Execute(func() error {
			close(trialStarted)
			<-release
			return nil
		})
	}()

	<-trialStarted
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected concurrent call to be rejected during half-open trial, got %v", err)
	}
	close(release)
	wg.Wait()
}

func TestHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		_ = b.Execute(func() error { return errTest })
	}

	now = now.Add(2 * time.Second)

	// Fail in half-open → should reopen
	_ = b.Execute(func() error { return errTest })

	if got := b.State(); got != StateOpen {
		t.Fatalf("expected open after half-open failure, got %s", got)
	}
	err := b.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after reopen, got %v", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, time.Second)

	_ = b.Execute(func() error { return errTest })
	_ = b.Execute(func() error { return errTest })
	_ = b.Execute(func() error { return nil })
	_ = b.Execute(func() error { return errTest })
	_ = b.Execute(func() error { return errTest })

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !called {
		t.Fatal("expected fn to be called")
	}
}

func TestCallerCancellationDoesNotTrip(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = b.ExecuteContext(ctx, func(ctx context.Context) error { return ctx.Err() })

	if got := b.State(); got != StateClosed {
		t.Fatalf("expected closed after caller cancellation, got %s", got)
	}
}

func TestOnStateChange(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	var got []State
	b.OnStateChange(func(from, to State) { got = append(got, from, to) })

	_ = b.Execute(func() error { return errTest })

	if len(got) != 2 || got[0] != StateClosed || got[1] != StateOpen {
		t.Fatalf("unexpected transitions %v", got)
	}
}
