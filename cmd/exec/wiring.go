package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Strob0t/Exec/internal/adapter/anthropic"
	"github.com/Strob0t/Exec/internal/adapter/membus"
	"github.com/Strob0t/Exec/internal/adapter/memstore"
	cfnats "github.com/Strob0t/Exec/internal/adapter/nats"
	"github.com/Strob0t/Exec/internal/adapter/natskv"
	"github.com/Strob0t/Exec/internal/adapter/openai"
	"github.com/Strob0t/Exec/internal/adapter/postgres"
	"github.com/Strob0t/Exec/internal/adapter/ristretto"
	"github.com/Strob0t/Exec/internal/adapter/tiered"
	"github.com/Strob0t/Exec/internal/config"
	"github.com/Strob0t/Exec/internal/port/cache"
	"github.com/Strob0t/Exec/internal/port/database"
	"github.com/Strob0t/Exec/internal/port/notification"
	"github.com/Strob0t/Exec/internal/port/oracle"
	"github.com/Strob0t/Exec/internal/resilience"
)

// l1Backfill bounds how long a value pulled from the shared cache stays in
// process memory.
const l1Backfill = 5 * time.Minute

// openStore returns the configured task store and its cleanup.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, func(), error) {
	if cfg.Store.Driver != "postgres" {
		slog.Info("using in-memory store")
		return memstore.New(), func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	return postgres.NewStore(pool), pool.Close, nil
}

// busInfra is the notification bus plus, for NATS, the raw connection that
// the shared caches ride on.
type busInfra struct {
	bus   notification.Bus
	nc    *nats.Conn
	close func()
}

func openBus(_ context.Context, cfg *config.Config) (*busInfra, error) {
	if cfg.Bus.Driver != "nats" {
		slog.Info("using in-process bus")
		return &busInfra{bus: membus.New(), close: func() {}}, nil
	}

	b, err := cfnats.Connect(cfg.NATS.URL, cfg.Bus.Subject)
	if err != nil {
		return nil, fmt.Errorf("nats: %w", err)
	}
	return &busInfra{
		bus: b,
		nc:  b.Conn(),
		close: func() {
			if err := b.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		},
	}, nil
}

// openCache builds an in-process cache and, when NATS is available, layers it
// over a JetStream KV bucket shared by every instance.
func openCache(ctx context.Context, cfg *config.Config, infra *busInfra, bucket string, ttl time.Duration) (cache.Cache, error) {
	local, err := ristretto.New(cfg.Tools.CacheMaxCostMB << 20)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	if infra.nc == nil || cfg.NATS.KVBucket == "" {
		return local, nil
	}

	remote, err := natskv.Open(ctx, infra.nc, bucket, ttl)
	if err != nil {
		slog.Warn("shared cache unavailable, using local cache only", "bucket", bucket, "error", err)
		return local, nil
	}
	slog.Info("shared cache enabled", "bucket", bucket)
	return tiered.New(local, remote, min(ttl, l1Backfill)), nil
}

// openOracle builds the configured completion backend behind a circuit
// breaker.
func openOracle(cfg *config.Config) (oracle.Oracle, error) {
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)

	switch cfg.Oracle.Provider {
	case "anthropic":
		o, err := anthropic.New(anthropic.Config{
			APIKey:      cfg.Oracle.APIKey,
			BaseURL:     cfg.Oracle.BaseURL,
			Model:       cfg.Oracle.Model,
			MaxTokens:   cfg.Oracle.MaxTokens,
			Temperature: cfg.Oracle.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("oracle: %w", err)
		}
		o.SetBreaker(breaker)
		return o, nil
	default:
		o, err := openai.New(openai.Config{
			APIKey:      cfg.Oracle.APIKey,
			BaseURL:     cfg.Oracle.BaseURL,
			Model:       cfg.Oracle.Model,
			MaxTokens:   cfg.Oracle.MaxTokens,
			Temperature: cfg.Oracle.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("oracle: %w", err)
		}
		o.SetBreaker(breaker)
		return o, nil
	}
}
