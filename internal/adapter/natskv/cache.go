// Package natskv implements the cache port on a NATS JetStream KV bucket so
// several Exec processes can share tool results and idempotency records.
package natskv

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Cache wraps a JetStream KeyValue bucket.
type Cache struct {
	kv jetstream.KeyValue
}

// New wraps an existing bucket.
func New(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv}
}

// Open creates or updates bucket on nc. JetStream expires entries per bucket,
// so ttl applies to every key written through this cache.
func Open(ctx context.Context, nc *nats.Conn, bucket string, ttl time.Duration) (*Cache, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		TTL:     ttl,
		History: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("kv bucket %s: %w", bucket, err)
	}
	return &Cache{kv: kv}, nil
}

// key maps arbitrary cache keys onto the KV key alphabet.
func key(k string) string {
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:])
}

// Get retrieves a value. A missing key is a miss, not an error.
func (c *Cache) Get(ctx context.Context, k string) (data []byte, ok bool, err error) {
	entry, err := c.kv.Get(ctx, key(k))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry.Value(), true, nil
}

// Set stores a value. The per-call ttl is ignored in favor of the bucket's.
func (c *Cache) Set(ctx context.Context, k string, value []byte, _ time.Duration) error {
	_, err := c.kv.Put(ctx, key(k), value)
	return err
}

// Delete removes a value.
func (c *Cache) Delete(ctx context.Context, k string) error {
	err := c.kv.Delete(ctx, key(k))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}
