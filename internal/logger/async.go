package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Closer flushes buffered records and stops background writers.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// DropFunc observes a record the async handler discarded.
type DropFunc func(level slog.Level)

// AsyncHandler moves record encoding off the request and wake-up paths.
// When the buffer is full, records below the keep level are dropped and
// counted; records at or above it wait for room. After Close, records are
// written synchronously.
type AsyncHandler struct {
	inner slog.Handler
	state *asyncState
}

type asyncState struct {
	root slog.Handler
	ch   chan queuedRecord
	keep slog.Level
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	once   sync.Once

	dropped atomic.Int64
	onDrop  atomic.Pointer[DropFunc]
}

// queuedRecord keeps the handler that received the record, so attributes
// and groups added with With survive the hand-off.
type queuedRecord struct {
	h   slog.Handler
	rec slog.Record
}

// NewAsyncHandler starts workers draining a buffer of size records into
// inner. Records at keep or above are never dropped.
func NewAsyncHandler(inner slog.Handler, size, workers int, keep slog.Level) *AsyncHandler {
	if workers < 1 {
		workers = 1
	}
	s := &asyncState{
		root: inner,
		ch:   make(chan queuedRecord, size),
		keep: keep,
	}
	for range workers {
		s.wg.Add(1)
		go s.drain()
	}
	return &AsyncHandler{inner: inner, state: s}
}

func (s *asyncState) drain() {
	defer s.wg.Done()
	for q := range s.ch {
		_ = q.h.Handle(context.Background(), q.rec)
	}
}

func (s *asyncState) drop(level slog.Level) {
	s.dropped.Add(1)
	if fn := s.onDrop.Load(); fn != nil {
		(*fn)(level)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle queues rec. A kept record whose context ends while waiting for room
// is written synchronously instead.
func (h *AsyncHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	s := h.state
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return h.inner.Handle(ctx, rec)
	}

	q := queuedRecord{h: h.inner, rec: rec.Clone()}
	if rec.Level >= s.keep {
		select {
		case s.ch <- q:
			return nil
		case <-ctx.Done():
			return h.inner.Handle(context.WithoutCancel(ctx), rec)
		}
	}
	select {
	case s.ch <- q:
	default:
		s.drop(rec.Level)
	}
	return nil
}

// WithAttrs returns a handler on the same buffer.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), state: h.state}
}

// WithGroup returns a handler on the same buffer.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), state: h.state}
}

// OnDrop registers fn to be called for every dropped record.
func (h *AsyncHandler) OnDrop(fn DropFunc) {
	h.state.onDrop.Store(&fn)
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.state.dropped.Load()
}

// Close drains the buffer and, if anything was dropped, writes one summary
// record. It is safe to call more than once.
func (h *AsyncHandler) Close() {
	s := h.state
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()

		if n := s.dropped.Load(); n > 0 {
			rec := slog.NewRecord(time.Now(), slog.LevelWarn, "log records dropped", 0)
			rec.AddAttrs(slog.Int64("count", n))
			_ = s.root.Handle(context.Background(), rec)
		}
	})
}
