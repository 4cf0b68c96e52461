// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/Exec/internal/domain/actor"
	"github.com/Strob0t/Exec/internal/domain/task"
)

// Store is the port interface for database operations. Implementations must
// make each call atomic on its own; cross-call ordering is the caller's job.
type Store interface {
	// Actors
	ListActors(ctx context.Context) ([]actor.Actor, error)
	GetActor(ctx context.Context, id string) (*actor.Actor, error)
	GetActorByName(ctx context.Context, name string) (*actor.Actor, error)
	CreateActor(ctx context.Context, req actor.CreateRequest) (*actor.Actor, error)

	// Tasks
	ListTasks(ctx context.Context) ([]task.Task, error)
	ListTasksByParticipant(ctx context.Context, actorID string) ([]task.Task, error)
	GetTask(ctx context.Context, id string) (*task.Task, error)
	// CreateTask stores a new open task. When parentID is set the new id is
	// appended to the parent's subtask list in the same transaction.
	CreateTask(ctx context.Context, req task.CreateRequest, parentID string) (*task.Task, error)
	UpdateTaskWorker(ctx context.Context, id, workerID string) (*task.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, isOpen, isComplete bool) (*task.Task, error)
	UpdateTaskResult(ctx context.Context, id, resultRef string) (*task.Task, error)

	// Messages
	// AppendMessage assigns the next Seq for the task and a CreatedAt no
	// earlier than the previous message's.
	AppendMessage(ctx context.Context, taskID string, req task.AppendRequest, kind task.MessageKind) (*task.Message, error)
	ListMessages(ctx context.Context, taskID string) ([]task.Message, error)
}
