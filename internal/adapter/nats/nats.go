// Package nats implements the notification bus port over NATS core pub/sub.
// Delivery is at most once; there is no replay for subscribers that were
// offline when an event was published.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/Strob0t/Exec/internal/logger"
	"github.com/Strob0t/Exec/internal/port/notification"
)

const headerRequestID = "X-Request-ID"

// Bus implements notification.Bus on a single NATS subject.
type Bus struct {
	nc      *nats.Conn
	subject string
}

// Connect establishes a connection to NATS. Events are published on subject.
func Connect(url, subject string) (*Bus, error) {
	nc, err := nats.Connect(url, nats.Name("exec"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	slog.Info("nats connected", "url", url, "subject", subject)
	return &Bus{nc: nc, subject: subject}, nil
}

// Publish encodes ev as JSON and sends it. The request ID, when present on
// ctx, travels as a message header.
func (b *Bus) Publish(ctx context.Context, ev notification.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := nats.NewMsg(b.subject)
	msg.Data = data
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set(headerRequestID, id)
	}
	if err := b.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", b.subject, err)
	}
	return nil
}

// Subscribe registers h for every event on the bus subject. Handler errors
// and undecodable payloads are logged and dropped.
func (b *Bus) Subscribe(ctx context.Context, h notification.Handler) (func(), error) {
	sub, err := b.nc.Subscribe(b.subject, b.callback(ctx, h))
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", b.subject, err)
	}
	return b.unsubscriber(sub), nil
}

// SubscribeGroup registers h in a NATS queue group, so each event is handled
// by one member of group across all connected processes.
func (b *Bus) SubscribeGroup(ctx context.Context, group string, h notification.Handler) (func(), error) {
	sub, err := b.nc.QueueSubscribe(b.subject, group, b.callback(ctx, h))
	if err != nil {
		return nil, fmt.Errorf("nats queue subscribe %s (%s): %w", b.subject, group, err)
	}
	return b.unsubscriber(sub), nil
}

func (b *Bus) callback(ctx context.Context, h notification.Handler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var ev notification.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Error("nats event decode failed", "subject", msg.Subject, "error", err)
			return
		}

		hctx := context.WithoutCancel(ctx)
		if id := msg.Header.Get(headerRequestID); id != "" {
			hctx = logger.WithRequestID(hctx, id)
		}
		if err := h(hctx, ev); err != nil {
			slog.Warn("event handler failed", "subject", msg.Subject, "task_id", ev.TaskID, "error", err)
		}
	}
}

func (b *Bus) unsubscriber(sub *nats.Subscription) func() {
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn("nats unsubscribe failed", "subject", b.subject, "error", err)
		}
	}
}

// Drain gracefully drains all subscriptions before closing.
func (b *Bus) Drain() error {
	return b.nc.Drain()
}

// Close shuts down the NATS connection.
func (b *Bus) Close() error {
	b.nc.Close()
	return nil
}

// IsConnected reports whether the underlying connection is up.
func (b *Bus) IsConnected() bool {
	return b.nc.IsConnected()
}

// Conn exposes the underlying connection so JetStream users can share it.
func (b *Bus) Conn() *nats.Conn {
	return b.nc
}
