// Package cache defines the port interface for caching tool results.
package cache

import (
	"context"
	"time"
)

// Cache is the port interface for key-value caching. A zero ttl means the
// entry does not expire.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
