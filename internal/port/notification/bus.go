// Package notification defines the port for fanning out task activity to
// interested actors.
package notification

import "context"

// EventKind distinguishes why an event was published.
type EventKind string

const (
	// EventMessage follows a chat message appended to a task.
	EventMessage EventKind = "message"
	// EventAssigned tells a worker it was routed a task.
	EventAssigned EventKind = "assigned"
	// EventDiagnostic follows a diagnostic entry; it never wakes a persona.
	EventDiagnostic EventKind = "diagnostic"
	// EventStatus follows a status or result change.
	EventStatus EventKind = "status"
)

// Event announces activity on a task to a set of recipients.
type Event struct {
	TaskID     string    `json:"task_id"`
	Recipients []string  `json:"recipients"`
	Kind       EventKind `json:"kind"`
	AuthorID   string    `json:"author_id,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	// Depth counts how many autonomous hops led to this event.
	Depth   int    `json:"depth"`
	ChainID string `json:"chain_id,omitempty"`
}

// Wakes reports whether the event may wake a persona at all.
func (e Event) Wakes() bool {
	return e.Kind == EventMessage || e.Kind == EventAssigned
}

// Handler processes one event.
type Handler func(ctx context.Context, ev Event) error

// Bus is the port interface for publishing and subscribing to task events.
type Bus interface {
	// Publish delivers ev to every subscriber. Handler failures are isolated
	// from the publisher and from each other.
	Publish(ctx context.Context, ev Event) error

	// Subscribe registers a handler that sees every event. The returned
	// function cancels it.
	Subscribe(ctx context.Context, h Handler) (cancel func(), err error)

	// SubscribeGroup registers a handler in a named group. Each event reaches
	// exactly one member of each group, across every process on the bus.
	SubscribeGroup(ctx context.Context, group string, h Handler) (cancel func(), err error)
}
