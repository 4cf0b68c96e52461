// Package cachetest holds the behaviour every cache.Cache implementation must show.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/Exec/internal/port/cache"
)

// Run checks c against the cache contract: read-your-writes, misses,
// delete and overwrite. Keys are prefixed so suites can share a cache.
func Run(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "search:compliance", []byte("# results"), time.Minute); err != nil {
			t.Fatal(err)
		}
		val, found, err := c.Get(ctx, "search:compliance")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after Set")
		}
		if string(val) != "# results" {
			t.Fatalf("expected # results, got %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "fetch:https://nowhere.invalid")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for nonexistent key")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, "fetch:https://example.com/del", []byte("page"), time.Minute)
		if err := c.Delete(ctx, "fetch:https://example.com/del"); err != nil {
			t.Fatal(err)
		}
		_, found, err := c.Get(ctx, "fetch:https://example.com/del")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		if err := c.Delete(ctx, "search:never"); err != nil {
			t.Fatal("Delete of nonexistent key should not error")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "search:overwrite", []byte("v1"), time.Minute)
		_ = c.Set(ctx, "search:overwrite", []byte("v2"), time.Minute)
		val, found, err := c.Get(ctx, "search:overwrite")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after overwrite")
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %s", val)
		}
	})
}

// RunExpiry checks that entries stop being served after their TTL.
func RunExpiry(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	if err := c.Set(ctx, "search:ttl", []byte("short-lived"), 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, found, _ := c.Get(ctx, "search:ttl"); !found {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("entry still served after TTL")
}
