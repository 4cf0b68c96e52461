package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Strob0t/Exec/internal/domain"
	"github.com/Strob0t/Exec/internal/domain/task"
	"github.com/Strob0t/Exec/internal/port/database"
	"github.com/Strob0t/Exec/internal/port/notification"
)

// TaskService handles task business logic and announces every change on the
// notification bus.
type TaskService struct {
	store database.Store
	bus   notification.Bus
	locks *keyLock
}

// NewTaskService creates a new TaskService.
func NewTaskService(store database.Store, bus notification.Bus) *TaskService {
	return &TaskService{store: store, bus: bus, locks: newKeyLock()}
}

// List returns every task.
func (s *TaskService) List(ctx context.Context) ([]task.Task, error) {
	return s.store.ListTasks(ctx)
}

// Get returns a task by ID.
func (s *TaskService) Get(ctx context.Context, id string) (*task.Task, error) {
	return s.store.GetTask(ctx, id)
}

// FindByParticipant returns the tasks where the actor is client or worker.
func (s *TaskService) FindByParticipant(ctx context.Context, actorID string) ([]task.Task, error) {
	if _, err := s.store.GetActor(ctx, actorID); err != nil {
		return nil, err
	}
	return s.store.ListTasksByParticipant(ctx, actorID)
}

// Subtasks returns the direct children of a task in creation order.
func (s *TaskService) Subtasks(ctx context.Context, id string) ([]task.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]task.Task, 0, len(t.Subtasks))
	for _, sid := range t.Subtasks {
		st, err := s.store.GetTask(ctx, sid)
		if err != nil {
			return nil, fmt.Errorf("load subtask %s: %w", sid, err)
		}
		out = append(out, *st)
	}
	return out, nil
}

// Transcript returns the task's messages in append order.
func (s *TaskService) Transcript(ctx context.Context, id string) ([]task.Message, error) {
	if _, err := s.store.GetTask(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, id)
}

// CreateTask creates a top-level task. The worker stays unset unless the
// request names one, in which case the worker is told about it.
func (s *TaskService) CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkActors(ctx, req.ClientID, req.WorkerID); err != nil {
		return nil, err
	}

	t, err := s.store.CreateTask(ctx, req, "")
	if err != nil {
		return nil, err
	}
	if t.HasWorker() {
		s.publish(ctx, t, notification.EventAssigned, req.ClientID, "", []string{t.WorkerID})
	}
	return t, nil
}

// CreateSubtask creates a child of parentID and appends it to the parent's
// subtask list.
func (s *TaskService) CreateSubtask(ctx context.Context, parentID string, req task.CreateRequest) (*task.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(parentID)
	defer unlock()

	parent, err := s.store.GetTask(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("parent task: %w", err)
	}
	if _, err := task.Ancestors(ctx, parent, s.store.GetTask); err != nil {
		return nil, err
	}
	if err := s.checkActors(ctx, req.ClientID, req.WorkerID); err != nil {
		return nil, err
	}

	t, err := s.store.CreateTask(ctx, req, parent.ID)
	if err != nil {
		return nil, err
	}
	if t.HasWorker() {
		s.publish(ctx, t, notification.EventAssigned, req.ClientID, "", []string{t.WorkerID})
	}
	return t, nil
}

// AssignWorker routes an open task to workerID and wakes the new worker.
func (s *TaskService) AssignWorker(ctx context.Context, taskID, workerID, byActorID string) (*task.Task, error) {
	if workerID == "" {
		return nil, fmt.Errorf("%w: worker_id is required", domain.ErrValidation)
	}

	unlock := s.locks.Lock(taskID)
	defer unlock()

	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !t.Active() {
		return nil, fmt.Errorf("%w: task %s is closed or complete", domain.ErrConflict, taskID)
	}
	if err := s.checkActors(ctx, byActorID, workerID); err != nil {
		return nil, err
	}

	t, err = s.store.UpdateTaskWorker(ctx, taskID, workerID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, t, notification.EventAssigned, byActorID, "", without([]string{workerID}, byActorID))
	return t, nil
}

// AppendMessage adds a chat message and notifies {client, worker} minus the
// author. The write and the publish happen under the task's lock so events
// leave in message order.
func (s *TaskService) AppendMessage(ctx context.Context, taskID, authorID, body string) (*task.Message, error) {
	return s.appendAs(ctx, taskID, task.AppendRequest{AuthorID: authorID, Body: body},
		task.KindChat, notification.EventMessage)
}

// AppendDiagnostic records an engine failure in the discussion. Its event
// never wakes a persona.
func (s *TaskService) AppendDiagnostic(ctx context.Context, taskID, authorID, body string) (*task.Message, error) {
	return s.appendAs(ctx, taskID, task.AppendRequest{AuthorID: authorID, Body: body},
		task.KindDiagnostic, notification.EventDiagnostic)
}

func (s *TaskService) appendAs(ctx context.Context, taskID string, req task.AppendRequest, kind task.MessageKind, ev notification.EventKind) (*task.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(taskID)
	defer unlock()

	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetActor(ctx, req.AuthorID); err != nil {
		return nil, fmt.Errorf("author: %w", err)
	}

	m, err := s.store.AppendMessage(ctx, taskID, req, kind)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, t, ev, req.AuthorID, m.ID, t.Recipients(req.AuthorID))
	return m, nil
}

// MarkComplete sets the task's complete flag. Completing twice is a no-op.
func (s *TaskService) MarkComplete(ctx context.Context, taskID, byActorID string) (*task.Task, error) {
	return s.updateStatus(ctx, taskID, byActorID, func(t *task.Task) (bool, bool) {
		return t.IsOpen, true
	})
}

// Close soft-closes the task. Closed tasks keep their history but no longer
// wake personas.
func (s *TaskService) Close(ctx context.Context, taskID, byActorID string) (*task.Task, error) {
	return s.updateStatus(ctx, taskID, byActorID, func(t *task.Task) (bool, bool) {
		return false, t.IsComplete
	})
}

func (s *TaskService) updateStatus(ctx context.Context, taskID, byActorID string, next func(*task.Task) (isOpen, isComplete bool)) (*task.Task, error) {
	unlock := s.locks.Lock(taskID)
	defer unlock()

	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	isOpen, isComplete := next(t)
	if isOpen == t.IsOpen && isComplete == t.IsComplete {
		return t, nil
	}

	t, err = s.store.UpdateTaskStatus(ctx, taskID, isOpen, isComplete)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, t, notification.EventStatus, byActorID, "", t.Recipients(byActorID))
	return t, nil
}

// SetResult records the task's result artifact reference.
func (s *TaskService) SetResult(ctx context.Context, taskID, resultRef, byActorID string) (*task.Task, error) {
	unlock := s.locks.Lock(taskID)
	defer unlock()

	t, err := s.store.UpdateTaskResult(ctx, taskID, resultRef)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, t, notification.EventStatus, byActorID, "", t.Recipients(byActorID))
	return t, nil
}

// checkActors verifies that every non-empty id resolves to an actor.
func (s *TaskService) checkActors(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := s.store.GetActor(ctx, id); err != nil {
			return fmt.Errorf("actor %s: %w", id, err)
		}
	}
	return nil
}

// publish announces a change. The store write already happened, so a bus
// failure is logged and the caller still gets its result.
func (s *TaskService) publish(ctx context.Context, t *task.Task, kind notification.EventKind, authorID, messageID string, recipients []string) {
	if len(recipients) == 0 {
		return
	}
	chainID, depth := next(ctx)
	ev := notification.Event{
		TaskID:     t.ID,
		Recipients: recipients,
		Kind:       kind,
		AuthorID:   authorID,
		MessageID:  messageID,
		Depth:      depth,
		ChainID:    chainID,
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		slog.WarnContext(ctx, "failed to publish task event",
			"task_id", t.ID, "kind", string(kind), "error", err)
	}
}

func without(ids []string, drop string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
