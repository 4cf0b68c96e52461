// Package task defines the Task and Message domain entities that make up a tree
// of delegated work and its discussion log.
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/Exec/internal/domain"
)

// Task is a unit of delegated work. Parent and subtask links are ids into the
// store, never live pointers.
type Task struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	IsOpen     bool      `json:"is_open"`
	IsComplete bool      `json:"is_complete"`
	ClientID   string    `json:"client_id"`
	WorkerID   string    `json:"worker_id,omitempty"`
	ParentID   string    `json:"parent_id,omitempty"`
	Subtasks   []string  `json:"subtasks"`
	ResultRef  string    `json:"result_ref,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Active reports whether the task still accepts autonomous work.
func (t *Task) Active() bool {
	return t.IsOpen && !t.IsComplete
}

// HasWorker reports whether the task has been routed to a worker.
func (t *Task) HasWorker() bool {
	return t.WorkerID != ""
}

// Participants returns the distinct client and worker ids of the task.
func (t *Task) Participants() []string {
	ids := []string{t.ClientID}
	if t.WorkerID != "" && t.WorkerID != t.ClientID {
		ids = append(ids, t.WorkerID)
	}
	return ids
}

// Recipients returns {client, worker} minus the author, in that order.
func (t *Task) Recipients(authorID string) []string {
	var out []string
	for _, id := range t.Participants() {
		if id != authorID {
			out = append(out, id)
		}
	}
	return out
}

// Role labels an actor relative to this task.
type Role string

const (
	RoleClient Role = "Client"
	RoleWorker Role = "Worker"
	RoleOther  Role = "Other"
)

// RoleOf returns the role an actor plays on this task. The client role wins
// when an actor is both client and worker.
func (t *Task) RoleOf(actorID string) Role {
	switch actorID {
	case t.ClientID:
		return RoleClient
	case t.WorkerID:
		return RoleWorker
	default:
		return RoleOther
	}
}

// MessageKind separates discussion entries from engine diagnostics.
type MessageKind string

const (
	KindChat       MessageKind = "chat"
	KindDiagnostic MessageKind = "diagnostic"
)

// Message is an append-only discussion entry. Seq is the 1-based position
// within the task's log.
type Message struct {
	ID        string      `json:"id"`
	TaskID    string      `json:"task_id"`
	AuthorID  string      `json:"author_id"`
	Body      string      `json:"body"`
	Kind      MessageKind `json:"kind"`
	Seq       int         `json:"seq"`
	CreatedAt time.Time   `json:"created_at"`
}

// CreateRequest holds the fields needed to create a task or subtask.
type CreateRequest struct {
	Title    string `json:"title"`
	ClientID string `json:"client_id"`
	WorkerID string `json:"worker_id,omitempty"`
}

// Validate rejects requests that must not reach the store.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if r.ClientID == "" {
		return fmt.Errorf("%w: client_id is required", domain.ErrValidation)
	}
	return nil
}

// AppendRequest holds the fields needed to append a message.
type AppendRequest struct {
	AuthorID string `json:"author_id"`
	Body     string `json:"body"`
}

// Validate rejects empty bodies and missing authors.
func (r *AppendRequest) Validate() error {
	if r.AuthorID == "" {
		return fmt.Errorf("%w: author_id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(r.Body) == "" {
		return fmt.Errorf("%w: message body is required", domain.ErrValidation)
	}
	return nil
}
