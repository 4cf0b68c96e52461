// Command exec serves the task API and runs the persona orchestrator.
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

	cfhttp "github.com/Strob0t/Exec/internal/adapter/http"
	cfotel "github.com/Strob0t/Exec/internal/adapter/otel"
	"github.com/Strob0t/Exec/internal/adapter/serpapi"
	"github.com/Strob0t/Exec/internal/adapter/webfetch"
	"github.com/Strob0t/Exec/internal/adapter/ws"
	"github.com/Strob0t/Exec/internal/config"
	"github.com/Strob0t/Exec/internal/logger"
	"github.com/Strob0t/Exec/internal/middleware"
	"github.com/Strob0t/Exec/internal/resilience"
	"github.com/Strob0t/Exec/internal/service"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
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

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"bus", cfg.Bus.Driver,
		"oracle", cfg.Oracle.Provider,
		"max_depth", cfg.Orchestrator.MaxDepth,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---

	shutdownOTel, err := cfotel.Init(ctx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if ah, ok := closeLog.(*logger.AsyncHandler); ok {
		ah.OnDrop(metrics.LogDropped)
	}

	// --- Infrastructure ---

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	infra, err := openBus(ctx, cfg)
	if err != nil {
		return err
	}
	defer infra.close()

	toolCache, err := openCache(ctx, cfg, infra, cfg.NATS.KVBucket, cfg.Tools.CacheTTL)
	if err != nil {
		return err
	}
	idemCache, err := openCache(ctx, cfg, infra, cfg.NATS.KVBucket+"_IDEMPOTENCY", cfg.Server.IdempotencyTTL)
	if err != nil {
		return err
	}

	inner, err := openOracle(cfg)
	if err != nil {
		return err
	}
	reliable := service.NewReliableOracle(inner, cfg.Oracle.Timeout, cfg.Oracle.Retries, metrics)

	if cfg.Tools.SerpAPIKey == "" {
		slog.Warn("no search API key configured, SEARCH_WEB will fail")
	}
	searcher := serpapi.NewClient(cfg.Tools.SerpAPIURL, cfg.Tools.SerpAPIKey, cfg.Tools.Country)
	searcher.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
	fetcher := webfetch.New(cfg.Tools.FetchTimeout, cfg.Tools.MaxContentBytes)

	// --- Services ---

	actorSvc := service.NewActorService(store, cfg.Orchestrator.DefaultAgent)
	if _, err := actorSvc.Seed(ctx); err != nil {
		return fmt.Errorf("seed actors: %w", err)
	}
	taskSvc := service.NewTaskService(store, infra.bus)
	toolSvc := service.NewToolService(searcher, fetcher, toolCache, cfg.Tools.CacheTTL)

	dispatcher, err := service.NewDispatcher(taskSvc, toolSvc, actorSvc, metrics)
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}
	runtime := service.NewRuntime(taskSvc, actorSvc, reliable, dispatcher, cfg.Oracle.SystemPrompt)
	orch := service.NewOrchestrator(cfg.Orchestrator, taskSvc, actorSvc, runtime, metrics)

	hub := ws.NewHub()
	orch.SetBroadcaster(hub)

	cancelOrch, err := infra.bus.SubscribeGroup(ctx, cfg.Bus.Group, orch.Handle)
	if err != nil {
		return fmt.Errorf("subscribe orchestrator: %w", err)
	}
	defer cancelOrch()
	cancelRelay, err := infra.bus.Subscribe(ctx, hub.Relay)
	if err != nil {
		return fmt.Errorf("subscribe websocket relay: %w", err)
	}
	defer cancelRelay()

	orch.Start(ctx)
	defer orch.Stop()

	// --- HTTP ---

	handlers := &cfhttp.Handlers{
		Actors:       actorSvc,
		Tasks:        taskSvc,
		Orchestrator: orch,
		BodyLimit:    cfg.Server.BodyLimit,
		Version:      version,
	}

	r := chi.NewRouter()
	r.Use(cfotel.HTTPMiddleware(cfg.OTel.ServiceName))
	r.Use(middleware.RequestID)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cfhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", handlers.Health)
	r.Get("/ws", hub.HandleWS)

	cfhttp.MountRoutes(r, handlers,
		chimw.Timeout(30*time.Second),
		middleware.Idempotency(idemCache, cfg.Server.IdempotencyTTL),
	)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
