package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "exec"

// StartWakeupSpan starts a span for one persona wake-up.
func StartWakeupSpan(ctx context.Context, taskID, actorID string, depth int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "wakeup",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("actor.id", actorID),
			attribute.Int("chain.depth", depth),
		),
	)
}

// StartOracleSpan starts a span for one oracle completion.
func StartOracleSpan(ctx context.Context, phase string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "oracle",
		trace.WithAttributes(attribute.String("oracle.phase", phase)),
	)
}

// StartActionSpan starts a span for executing a persona action.
func StartActionSpan(ctx context.Context, persona, action string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "action",
		trace.WithAttributes(
			attribute.String("persona.kind", persona),
			attribute.String("action.name", action),
		),
	)
}
