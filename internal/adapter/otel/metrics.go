package otel

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "exec"

// Metrics holds all Exec metric instruments.
type Metrics struct {
	WakeupsStarted    metric.Int64Counter
	WakeupsFailed     metric.Int64Counter
	WakeupsDropped    metric.Int64Counter
	WakeupsSkipped    metric.Int64Counter
	ActionsDispatched metric.Int64Counter
	OracleDuration    metric.Float64Histogram
	LogRecordsDropped metric.Int64Counter
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.WakeupsStarted, err = meter.Int64Counter("exec.wakeups.started",
		metric.WithDescription("Number of persona wake-ups started"))
	if err != nil {
		return nil, err
	}

	m.WakeupsFailed, err = meter.Int64Counter("exec.wakeups.failed",
		metric.WithDescription("Number of persona wake-ups that ended in a diagnostic"))
	if err != nil {
		return nil, err
	}

	m.WakeupsDropped, err = meter.Int64Counter("exec.wakeups.dropped",
		metric.WithDescription("Number of wake-ups dropped because the queue was full"))
	if err != nil {
		return nil, err
	}

	m.WakeupsSkipped, err = meter.Int64Counter("exec.wakeups.skipped",
		metric.WithDescription("Number of wake-ups skipped by the depth budget"))
	if err != nil {
		return nil, err
	}

	m.ActionsDispatched, err = meter.Int64Counter("exec.actions.dispatched",
		metric.WithDescription("Number of persona actions executed"))
	if err != nil {
		return nil, err
	}

	m.OracleDuration, err = meter.Float64Histogram("exec.oracle.duration_seconds",
		metric.WithDescription("Oracle completion latency in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.LogRecordsDropped, err = meter.Int64Counter("exec.log.records_dropped",
		metric.WithDescription("Number of log records dropped by the async log handler"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// LogDropped counts one dropped log record. It matches logger.DropFunc.
func (m *Metrics) LogDropped(level slog.Level) {
	m.LogRecordsDropped.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("level", level.String())))
}
