// Package tiered implements the cache port as a process-local L1 in front of
// a shared L2.
package tiered

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/Exec/internal/port/cache"
)

// Cache reads L1 first and falls back to L2, backfilling L1 on an L2 hit.
// L2 is best-effort: its failures are logged and the call is served from L1.
type Cache struct {
	local    cache.Cache
	remote   cache.Cache
	backfill time.Duration
}

// New creates a tiered cache. backfill is the L1 lifetime of entries copied
// up from L2.
func New(local, remote cache.Cache, backfill time.Duration) *Cache {
	return &Cache{local: local, remote: remote, backfill: backfill}
}

// Get checks L1, then L2.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, found, err := c.local.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.remote.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "remote cache get failed", "key", key, "error", err)
		return nil, false, nil
	}
	if !found {
		return nil, false, nil
	}
	if err := c.local.Set(ctx, key, val, c.backfill); err != nil {
		slog.WarnContext(ctx, "cache backfill failed", "key", key, "error", err)
	}
	return val, true, nil
}

// Set writes L1 and then L2.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.local.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if err := c.remote.Set(ctx, key, value, ttl); err != nil {
		slog.WarnContext(ctx, "remote cache set failed", "key", key, "error", err)
	}
	return nil
}

// Delete removes the key from both levels.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.local.Delete(ctx, key); err != nil {
		return err
	}
	return c.remote.Delete(ctx, key)
}
