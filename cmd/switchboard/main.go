package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	sbhttp "github.com/Strob0t/Switchboard/internal/adapter/http"
	"github.com/Strob0t/Switchboard/internal/adapter/knowledgefs"
	sbotel "github.com/Strob0t/Switchboard/internal/adapter/otel"
	"github.com/Strob0t/Switchboard/internal/adapter/ws"
	"github.com/Strob0t/Switchboard/internal/config"
	"github.com/Strob0t/Switchboard/internal/domain/orchestration"
	"github.com/Strob0t/Switchboard/internal/logger"
	"github.com/Strob0t/Switchboard/internal/middleware"
	"github.com/Strob0t/Switchboard/internal/service"
)

const (
	shutdownTimeout = 10 * time.Second
	requestTimeout  = 30 * time.Second
	purgeInterval   = 10 * time.Minute
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
		"llm", cfg.LLM.Provider,
		"log_level", cfg.Logging.Level,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---

	shutdownOTEL, err := sbotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	}()

	metrics, err := sbotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	in, err := openInfra(ctx, cfg)
	if err != nil {
		return err
	}
	defer in.Close()

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	triggers, err := orchestration.LoadTriggers(cfg.Routing.TriggersFile)
	if err != nil {
		return fmt.Errorf("triggers: %w", err)
	}

	profiles, err := agentProfiles(cfg.Agents)
	if err != nil {
		return err
	}

	catalog := knowledgefs.New(cfg.Knowledge.Dir)

	notifiers, err := newNotifiers(cfg.Notify)
	if err != nil {
		return fmt.Errorf("notifiers: %w", err)
	}
	for _, n := range notifiers {
		slog.Info("operator alerts enabled", "notifier", n.Name())
	}

	// --- Services ---

	hub := ws.NewHub(ws.OriginPatterns(cfg.Server.CORSOrigin)...)
	repo := service.NewConversationRepo(in.store)
	dispatch := service.NewDispatcher()

	deps := service.AgentDeps{
		Generator: gen,
		Knowledge: catalog,
		Triggers:  triggers,
		Repo:      repo,
		Queue:     in.queue,
		Metrics:   metrics,
	}
	agents := make([]*service.AgentService, 0, len(profiles))
	for _, p := range profiles {
		agents = append(agents, service.NewAgentService(p, deps))
	}

	cancelSubs, err := service.Subscribe(ctx, in.queue, service.NewSequencer(), service.Handlers{
		Classifier: service.NewClassifierService(gen, in.queue, repo, service.ClassifierConfig{
			Model:       cfg.Agents.ClassifierModel,
			Temperature: cfg.Agents.ClassifierTemperature,
			MaxTokens:   cfg.Agents.ClassifierMaxTokens,
		}, metrics),
		Agents: agents,
		Coordinator: service.NewCoordinatorService(repo, in.queue, dispatch, service.CoordinatorConfig{
			Policy: orchestration.Policy{
				LoopWindow:    cfg.Routing.LoopWindow,
				LoopThreshold: cfg.Routing.LoopThreshold,
			},
			HandoffDelay:    cfg.Routing.HandoffDelay,
			EscalationDelay: cfg.Routing.EscalationDelay,
			AuditTTL:        cfg.Routing.AuditTTL,
		}, metrics),
		Deliver: service.NewDeliverService(repo, hub, in.queue, cfg.Routing.ReceiptTTL, metrics),
		Human:   service.NewHumanQueueService(repo, hub).WithNotifiers(notifiers...),
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer cancelSubs()

	// --- HTTP ---

	handlers := &sbhttp.Handlers{
		Ingest:        service.NewIngestService(in.queue, metrics),
		Conversations: repo,
		BusConnected:  in.queue.IsConnected,
		StoreBackend:  cfg.Store.Backend,
		LLMProvider:   cfg.LLM.Provider,
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(sbhttp.SecurityHeaders)
	r.Use(sbhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(sbhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(sbotel.HTTPMiddleware(cfg.OTEL.ServiceName))

	// WebSocket connections outlive the request timeout.
	r.Get("/ws", hub.HandleWS)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		r.Use(limiter.Handler)
		sbhttp.MountRoutes(r, handlers, middleware.Idempotency(in.idem, cfg.Idempotency.TTL))
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// --- Lifecycle ---

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.Knowledge.Watch {
		g.Go(func() error { return catalog.Watch(gctx) })
	}
	if in.purge != nil {
		g.Go(func() error { return purgeLoop(gctx, in.purge, purgeInterval) })
	}

	// Stop accepting requests, flush delayed dispatches, then drain the bus
	// so in-flight handlers finish before the stores close.
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(sctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := dispatch.Close(sctx); err != nil {
			errs = append(errs, fmt.Errorf("dispatcher: %w", err))
		}
		if err := in.queue.Drain(); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
