package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/Exec/internal/port/broadcast"
	"github.com/Strob0t/Exec/internal/port/notification"
)

var _ broadcast.Broadcaster = (*Hub)(nil)

// EventTaskActivity is the message type for relayed bus events.
const EventTaskActivity = "task.activity"

// TaskActivityEvent is the payload of a task.activity message.
type TaskActivityEvent struct {
	TaskID    string `json:"task_id"`
	Kind      string `json:"kind"`
	AuthorID  string `json:"author_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}

// Relay is a notification.Handler that forwards bus events to the
// connections of their recipients.
func (h *Hub) Relay(ctx context.Context, ev notification.Event) error {
	data, err := json.Marshal(TaskActivityEvent{
		TaskID:    ev.TaskID,
		Kind:      string(ev.Kind),
		AuthorID:  ev.AuthorID,
		MessageID: ev.MessageID,
	})
	if err != nil {
		return err
	}
	recipients := ev.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	h.send(ctx, Message{Type: EventTaskActivity, Payload: data}, recipients)
	return nil
}
