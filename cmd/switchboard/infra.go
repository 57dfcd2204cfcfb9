package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/Switchboard/internal/adapter/memqueue"
	"github.com/Strob0t/Switchboard/internal/adapter/memstore"
	sbnats "github.com/Strob0t/Switchboard/internal/adapter/nats"
	"github.com/Strob0t/Switchboard/internal/adapter/natskv"
	"github.com/Strob0t/Switchboard/internal/adapter/postgres"
	"github.com/Strob0t/Switchboard/internal/adapter/ristretto"
	"github.com/Strob0t/Switchboard/internal/adapter/tiered"
	"github.com/Strob0t/Switchboard/internal/config"
	"github.com/Strob0t/Switchboard/internal/domain/conversation"
	"github.com/Strob0t/Switchboard/internal/port/messagequeue"
	"github.com/Strob0t/Switchboard/internal/port/statestore"
)

// memoryRetryDelay is the redelivery delay of the in-process bus.
const memoryRetryDelay = time.Second

// infra bundles the bus and stores selected by configuration.
type infra struct {
	queue messagequeue.Queue
	store statestore.Store
	idem  statestore.Store

	// purge removes expired rows; only the postgres backend sets it.
	purge func(ctx context.Context) (int64, error)

	closers []func()
}

// Close releases everything in reverse order of acquisition.
func (in *infra) Close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		in.closers[i]()
	}
	in.closers = nil
}

// openInfra connects the bus and opens the conversation and idempotency
// stores for cfg.Store.Backend. The memory backend runs the bus in-process.
func openInfra(ctx context.Context, cfg *config.Config) (_ *infra, err error) {
	in := &infra{}
	defer func() {
		if err != nil {
			in.Close()
		}
	}()

	var nq *sbnats.Queue
	if cfg.Store.Backend == "memory" {
		q := memqueue.New(memoryRetryDelay)
		in.queue = q
		in.closers = append(in.closers, func() { _ = q.Close() })
		slog.Warn("running with the in-process bus; state is lost on restart")
	} else {
		nq, err = sbnats.Connect(ctx, cfg.NATS.URL, sbnats.Options{Stream: cfg.NATS.Stream, Durable: cfg.NATS.Durable})
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		in.queue = nq
		in.closers = append(in.closers, func() { _ = nq.Close() })
	}

	if err := openStores(ctx, cfg, nq, in); err != nil {
		return nil, err
	}

	if cfg.Cache.Enabled {
		l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
		if err != nil {
			return nil, fmt.Errorf("l1 cache: %w", err)
		}
		in.closers = append(in.closers, l1.Close)
		// Conversation records are read-modify-written by whichever replica
		// consumes the next message, so only immutable records are cached.
		in.store = tiered.New(l1, in.store, cfg.Cache.L1TTL).Bypass(conversation.KeyPrefix)
		slog.Info("l1 cache enabled", "max_size_mb", cfg.Cache.L1MaxSizeMB, "ttl", cfg.Cache.L1TTL)
	}
	return in, nil
}

func openStores(ctx context.Context, cfg *config.Config, nq *sbnats.Queue, in *infra) error {
	switch cfg.Store.Backend {
	case "nats":
		store, err := natskv.Open(ctx, nq, cfg.Store.Bucket, cfg.Routing.AuditTTL, cfg.Routing.ReceiptTTL)
		if err != nil {
			return fmt.Errorf("conversation store: %w", err)
		}
		idem, err := natskv.Open(ctx, nq, cfg.Idempotency.Bucket, cfg.Idempotency.TTL)
		if err != nil {
			return fmt.Errorf("idempotency store: %w", err)
		}
		in.store, in.idem = store, idem
		slog.Info("nats kv store opened", "bucket", cfg.Store.Bucket)

	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		in.closers = append(in.closers, pool.Close)
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		slog.Info("migrations applied")
		store := postgres.NewStore(pool)
		in.store, in.idem, in.purge = store, store, store.PurgeExpired

	default:
		in.store, in.idem = memstore.New(), memstore.New()
	}
	return nil
}

// purgeLoop deletes expired rows every interval until ctx is cancelled.
func purgeLoop(ctx context.Context, purge func(context.Context) (int64, error), interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := purge(ctx)
			if err != nil {
				slog.Warn("purge expired records failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired records purged", "count", n)
			}
		}
	}
}
