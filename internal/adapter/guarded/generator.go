// Package guarded decorates an llm.Generator with a circuit breaker, a
// token-bucket rate limiter and a per-call timeout.
package guarded

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/Strob0t/Switchboard/internal/port/llm"
	"github.com/Strob0t/Switchboard/internal/resilience"
)

// Options configures a guarded Generator. Zero values disable the
// corresponding guard.
type Options struct {
	Breaker           *resilience.Breaker
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// Generator wraps another llm.Generator.
type Generator struct {
	next    llm.Generator
	breaker *resilience.Breaker
	limiter *rate.Limiter
	timeout time.Duration
}

// New wraps next with the guards in opts.
func New(next llm.Generator, opts Options) *Generator {
	g := &Generator{next: next, breaker: opts.Breaker, timeout: opts.Timeout}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return g
}

// Generate waits for a rate-limit token, then calls the wrapped generator
// through the breaker.
func (g *Generator) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("llm rate limit: %w", err)
		}
	}

	var resp *llm.Response
	call := func(ctx context.Context) error {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		var err error
		resp, err = g.next.Generate(ctx, req)
		return err
	}

	if g.breaker == nil {
		if err := call(ctx); err != nil {
			return nil, err
		}
		return resp, nil
	}
	if err := g.breaker.ExecuteContext(ctx, call); err != nil {
		return nil, err
	}
	return resp, nil
}
