package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/Exec/internal/adapter/otel"
	"github.com/Strob0t/Exec/internal/port/oracle"
)

// ReliableOracle bounds every completion by a per-attempt timeout and a fixed
// number of extra attempts.
type ReliableOracle struct {
	inner   oracle.Oracle
	timeout time.Duration
	retries int
	metrics *cfotel.Metrics
}

// NewReliableOracle wraps inner. A zero timeout leaves attempts bounded only
// by the caller's context.
func NewReliableOracle(inner oracle.Oracle, timeout time.Duration, retries int, metrics *cfotel.Metrics) *ReliableOracle {
	if retries < 0 {
		retries = 0
	}
	return &ReliableOracle{inner: inner, timeout: timeout, retries: retries, metrics: metrics}
}

// Complete returns the first successful completion. Once the budget is spent
// the error wraps oracle.ErrOracleFailure and the last attempt's error.
func (o *ReliableOracle) Complete(ctx context.Context, req oracle.Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= o.retries; attempt++ {
		out, err := o.attempt(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		slog.WarnContext(ctx, "oracle attempt failed", "attempt", attempt+1, "error", err)
	}
	return "", fmt.Errorf("%w: after %d attempt(s): %w", oracle.ErrOracleFailure, o.retries+1, lastErr)
}

func (o *ReliableOracle) attempt(ctx context.Context, req oracle.Request) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := o.inner.Complete(ctx, req)
	if o.metrics != nil {
		o.metrics.OracleDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.Bool("error", err != nil)))
	}
	return out, err
}
