// Package broadcast defines the port for pushing engine status to connected
// user interfaces.
package broadcast

import "context"

// EventWakeup is the event type for finished or dropped persona wake-ups.
const EventWakeup = "wakeup.status"

// Wakeup statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusDropped   = "dropped"
)

// WakeupEvent reports the outcome of one persona wake-up.
type WakeupEvent struct {
	TaskID  string `json:"task_id"`
	ActorID string `json:"actor_id"`
	Persona string `json:"persona,omitempty"`
	Action  string `json:"action,omitempty"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// Broadcaster sends real-time events to all connected clients.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
