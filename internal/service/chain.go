package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Strob0t/Exec/internal/logger"
)

// Chain identifies the run of autonomous wake-ups that started from one
// human-facing mutation. Depth is the hop count of the wake-up in progress.
type Chain struct {
	ID    string
	Depth int
}

type chainKey struct{}

// WithChain marks ctx as running inside an autonomous wake-up.
func WithChain(ctx context.Context, c Chain) context.Context {
	ctx = context.WithValue(ctx, chainKey{}, c)
	return logger.WithAttrs(ctx,
		slog.String("chain_id", c.ID),
		slog.Int("depth", c.Depth),
	)
}

// ChainFrom returns the chain carried by ctx, if any.
func ChainFrom(ctx context.Context) (Chain, bool) {
	c, ok := ctx.Value(chainKey{}).(Chain)
	return c, ok
}

// next returns the chain id and depth for an event published from ctx.
// Mutations made by a persona are one hop deeper than the wake-up that made
// them; anything else starts a fresh chain.
func next(ctx context.Context) (id string, depth int) {
	if c, ok := ChainFrom(ctx); ok {
		return c.ID, c.Depth + 1
	}
	return uuid.NewString(), 0
}
