package otel

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Strob0t/Exec/internal/config"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), config.OTel{ServiceName: "exec-test"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestNewMetrics(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	// Global no-op provider: recording must not panic.
	m.WakeupsStarted.Add(context.Background(), 1)
	m.OracleDuration.Record(context.Background(), 0.25)
	m.LogDropped(slog.LevelInfo)
}

func TestSpansWithNoopProvider(t *testing.T) {
	ctx, span := StartWakeupSpan(context.Background(), "t1", "a1", 2)
	_, child := StartOracleSpan(ctx, "decision")
	child.End()
	span.End()
}

func TestHTTPMiddlewarePassesThrough(t *testing.T) {
	called := false
	h := HTTPMiddleware("exec-test")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if !called || rec.Code != http.StatusTeapot {
		t.Fatalf("called=%v code=%d", called, rec.Code)
	}
}
