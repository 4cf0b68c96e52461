// Package memstore implements the database store port in process memory. It
// backs tests and single-process deployments without Postgres.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/Exec/internal/domain"
	"github.com/Strob0t/Exec/internal/domain/actor"
	"github.com/Strob0t/Exec/internal/domain/task"
)

// Store is an arena of actors, tasks and messages keyed by id.
type Store struct {
	mu       sync.RWMutex
	actors   map[string]*actor.Actor
	order    []string // actor ids in creation order
	tasks    map[string]*task.Task
	taskIDs  []string
	messages map[string][]task.Message
	now      func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		actors:   make(map[string]*actor.Actor),
		tasks:    make(map[string]*task.Task),
		messages: make(map[string][]task.Message),
		now:      time.Now,
	}
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, domain.ErrNotFound)
}

func copyTask(t *task.Task) task.Task {
	c := *t
	c.Subtasks = slices.Clone(t.Subtasks)
	if c.Subtasks == nil {
		c.Subtasks = []string{}
	}
	return c
}

// ListActors returns all actors in creation order.
func (s *Store) ListActors(_ context.Context) ([]actor.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]actor.Actor, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.actors[id])
	}
	return out, nil
}

func (s *Store) GetActor(_ context.Context, id string) (*actor.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actors[id]
	if !ok {
		return nil, notFound("actor", id)
	}
	c := *a
	return &c, nil
}

func (s *Store) GetActorByName(_ context.Context, name string) (*actor.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if a := s.actors[id]; a.Name == name {
			c := *a
			return &c, nil
		}
	}
	return nil, notFound("actor", name)
}

func (s *Store) CreateActor(_ context.Context, req actor.CreateRequest) (*actor.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		if s.actors[id].Name == req.Name {
			return nil, fmt.Errorf("actor %q exists: %w", req.Name, domain.ErrConflict)
		}
	}
	a := &actor.Actor{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Kind:      req.Kind,
		CreatedAt: s.now().UTC(),
	}
	s.actors[a.ID] = a
	s.order = append(s.order, a.ID)
	c := *a
	return &c, nil
}

// ListTasks returns all tasks in creation order.
func (s *Store) ListTasks(_ context.Context) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]task.Task, 0, len(s.taskIDs))
	for _, id := range s.taskIDs {
		out = append(out, copyTask(s.tasks[id]))
	}
	return out, nil
}

func (s *Store) ListTasksByParticipant(_ context.Context, actorID string) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []task.Task
	for _, id := range s.taskIDs {
		t := s.tasks[id]
		if t.ClientID == actorID || t.WorkerID == actorID {
			out = append(out, copyTask(t))
		}
	}
	return out, nil
}

func (s *Store) GetTask(_ context.Context, id string) (*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, notFound("task", id)
	}
	c := copyTask(t)
	return &c, nil
}

func (s *Store) CreateTask(ctx context.Context, req task.CreateRequest, parentID string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	var parent *task.Task
	if parentID != "" {
		p, ok := s.tasks[parentID]
		if !ok {
			return nil, notFound("task", parentID)
		}
		if err := task.CheckParent(ctx, id, parentID, s.lookupLocked); err != nil {
			return nil, err
		}
		parent = p
	}

	now := s.now().UTC()
	t := &task.Task{
		ID:        id,
		Title:     req.Title,
		IsOpen:    true,
		ClientID:  req.ClientID,
		WorkerID:  req.WorkerID,
		ParentID:  parentID,
		Subtasks:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.tasks[t.ID] = t
	s.taskIDs = append(s.taskIDs, t.ID)
	if parent != nil {
		parent.Subtasks = append(parent.Subtasks, t.ID)
		parent.UpdatedAt = now
	}
	c := copyTask(t)
	return &c, nil
}

// lookupLocked reads a task without copying. Callers hold s.mu.
func (s *Store) lookupLocked(_ context.Context, id string) (*task.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, notFound("task", id)
	}
	return t, nil
}

func (s *Store) update(id string, fn func(t *task.Task)) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, notFound("task", id)
	}
	fn(t)
	t.UpdatedAt = s.now().UTC()
	c := copyTask(t)
	return &c, nil
}

func (s *Store) UpdateTaskWorker(_ context.Context, id, workerID string) (*task.Task, error) {
	return s.update(id, func(t *task.Task) { t.WorkerID = workerID })
}

func (s *Store) UpdateTaskStatus(_ context.Context, id string, isOpen, isComplete bool) (*task.Task, error) {
	return s.update(id, func(t *task.Task) {
		t.IsOpen = isOpen
		t.IsComplete = isComplete
	})
}

func (s *Store) UpdateTaskResult(_ context.Context, id, resultRef string) (*task.Task, error) {
	return s.update(id, func(t *task.Task) { t.ResultRef = resultRef })
}

func (s *Store) AppendMessage(_ context.Context, taskID string, req task.AppendRequest, kind task.MessageKind) (*task.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[taskID]; !ok {
		return nil, notFound("task", taskID)
	}
	log := s.messages[taskID]
	at := s.now().UTC()
	if n := len(log); n > 0 && at.Before(log[n-1].CreatedAt) {
		at = log[n-1].CreatedAt
	}
	m := task.Message{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		AuthorID:  req.AuthorID,
		Body:      req.Body,
		Kind:      kind,
		Seq:       len(log) + 1,
		CreatedAt: at,
	}
	s.messages[taskID] = append(log, m)
	return &m, nil
}

// ListMessages returns the task's log in append order.
func (s *Store) ListMessages(_ context.Context, taskID string) ([]task.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.tasks[taskID]; !ok {
		return nil, notFound("task", taskID)
	}
	return slices.Clone(s.messages[taskID]), nil
}
