// Package membus implements the notification bus port in process. Publish
// calls subscribers synchronously, in subscription order. Grouped subscribers
// take turns.
package membus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Strob0t/Exec/internal/port/notification"
)

type subscriber struct {
	id    int
	group string
	h     notification.Handler
}

// Bus is a synchronous in-process fan-out.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber
	turn   map[string]int
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{turn: make(map[string]int)}
}

// Publish delivers ev to each subscriber in turn. A handler error or panic
// is logged and does not reach the publisher or the remaining handlers.
func (b *Bus) Publish(ctx context.Context, ev notification.Event) error {
	subs := b.recipients()

	for _, s := range subs {
		if err := deliver(ctx, s.h, ev); err != nil {
			slog.WarnContext(ctx, "event handler failed",
				"task_id", ev.TaskID, "kind", ev.Kind, "subscriber", s.id, "error", err)
		}
	}
	return nil
}

func deliver(ctx context.Context, h notification.Handler, ev notification.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, ev)
}

// recipients returns every ungrouped subscriber plus one member of each
// group, rotating through the members on each call.
func (b *Bus) recipients() []subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	members := make(map[string][]subscriber)
	var out []subscriber
	for _, s := range b.subs {
		if s.group == "" {
			out = append(out, s)
			continue
		}
		if _, seen := members[s.group]; !seen {
			out = append(out, s) // placeholder keeps the group's first position
		}
		members[s.group] = append(members[s.group], s)
	}
	for i, s := range out {
		if s.group == "" {
			continue
		}
		m := members[s.group]
		n := b.turn[s.group] % len(m)
		b.turn[s.group] = n + 1
		out[i] = m[n]
	}
	return out
}

// Subscribe registers h. The returned cancel is idempotent.
func (b *Bus) Subscribe(_ context.Context, h notification.Handler) (func(), error) {
	return b.add("", h), nil
}

// SubscribeGroup registers h in group. Each event goes to one member of the
// group.
func (b *Bus) SubscribeGroup(_ context.Context, group string, h notification.Handler) (func(), error) {
	if group == "" {
		return nil, fmt.Errorf("membus: empty group")
	}
	return b.add(group, h), nil
}

func (b *Bus) add(group string, h notification.Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, group: group, h: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}
