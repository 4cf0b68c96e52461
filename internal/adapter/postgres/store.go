package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/Exec/internal/domain"
	"github.com/Strob0t/Exec/internal/domain/actor"
	"github.com/Strob0t/Exec/internal/domain/task"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const uniqueViolation = "23505"

// --- Actors ---

const actorColumns = `id, name, kind, created_at`

func scanActor(row scannable) (actor.Actor, error) {
	var a actor.Actor
	err := row.Scan(&a.ID, &a.Name, &a.Kind, &a.CreatedAt)
	return a, err
}

func (s *Store) ListActors(ctx context.Context) ([]actor.Actor, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+actorColumns+` FROM actors ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	defer rows.Close()

	var actors []actor.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan actor: %w", err)
		}
		actors = append(actors, a)
	}
	return orEmpty(actors), rows.Err()
}

func (s *Store) GetActor(ctx context.Context, id string) (*actor.Actor, error) {
	if err := checkID("get actor", id); err != nil {
		return nil, err
	}
	a, err := scanActor(s.pool.QueryRow(ctx, `SELECT `+actorColumns+` FROM actors WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get actor %s", id)
	}
	return &a, nil
}

func (s *Store) GetActorByName(ctx context.Context, name string) (*actor.Actor, error) {
	a, err := scanActor(s.pool.QueryRow(ctx, `SELECT `+actorColumns+` FROM actors WHERE name = $1`, name))
	if err != nil {
		return nil, notFoundWrap(err, "get actor %q", name)
	}
	return &a, nil
}

func (s *Store) CreateActor(ctx context.Context, req actor.CreateRequest) (*actor.Actor, error) {
	a, err := scanActor(s.pool.QueryRow(ctx,
		`INSERT INTO actors (name, kind) VALUES ($1, $2) RETURNING `+actorColumns,
		req.Name, string(req.Kind)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("create actor %q: %w", req.Name, domain.ErrConflict)
		}
		return nil, fmt.Errorf("create actor %q: %w", req.Name, err)
	}
	return &a, nil
}

// --- Tasks ---

const taskColumns = `t.id, t.title, t.is_open, t.is_complete, t.client_id, t.worker_id, t.parent_id,
	ARRAY(SELECT c.id::text FROM tasks c WHERE c.parent_id = t.id ORDER BY c.position),
	t.result_ref, t.created_at, t.updated_at`

func scanTask(row scannable) (task.Task, error) {
	var (
		t        task.Task
		workerID *string
		parentID *string
	)
	err := row.Scan(&t.ID, &t.Title, &t.IsOpen, &t.IsComplete, &t.ClientID, &workerID, &parentID,
		&t.Subtasks, &t.ResultRef, &t.CreatedAt, &t.UpdatedAt)
	t.WorkerID = derefOr(workerID)
	t.ParentID = derefOr(parentID)
	t.Subtasks = orEmpty(t.Subtasks)
	return t, err
}

func (s *Store) queryTasks(ctx context.Context, op, where string, args ...any) ([]task.Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks t `+where+` ORDER BY t.created_at, t.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		tasks = append(tasks, t)
	}
	return orEmpty(tasks), rows.Err()
}

func (s *Store) ListTasks(ctx context.Context) ([]task.Task, error) {
	return s.queryTasks(ctx, "list tasks", "")
}

func (s *Store) ListTasksByParticipant(ctx context.Context, actorID string) ([]task.Task, error) {
	if err := checkID("list tasks by participant", actorID); err != nil {
		return []task.Task{}, nil
	}
	return s.queryTasks(ctx, "list tasks by participant", `WHERE t.client_id = $1 OR t.worker_id = $1`, actorID)
}

func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	if err := checkID("get task", id); err != nil {
		return nil, err
	}
	t, err := scanTask(s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get task %s", id)
	}
	return &t, nil
}

// CreateTask locks the parent row so concurrent subtask inserts get distinct
// positions.
func (s *Store) CreateTask(ctx context.Context, req task.CreateRequest, parentID string) (*task.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	position := 0
	if parentID != "" {
		if err := checkID("create task: parent", parentID); err != nil {
			return nil, err
		}
		var locked string
		if err := tx.QueryRow(ctx, `SELECT id FROM tasks WHERE id = $1 FOR UPDATE`, parentID).Scan(&locked); err != nil {
			return nil, notFoundWrap(err, "create task: parent %s", parentID)
		}
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM tasks WHERE parent_id = $1`, parentID).Scan(&position); err != nil {
			return nil, fmt.Errorf("create task: count siblings: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE tasks SET updated_at = now() WHERE id = $1`, parentID); err != nil {
			return nil, fmt.Errorf("create task: touch parent: %w", err)
		}
	}

	var id string
	err = tx.QueryRow(ctx,
		`INSERT INTO tasks (title, client_id, worker_id, parent_id, position)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		req.Title, req.ClientID, nullIfEmpty(req.WorkerID), nullIfEmpty(parentID), position).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create task: insert: %w", err)
	}

	t, err := scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("create task: reload: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &t, nil
}

func (s *Store) updateTask(ctx context.Context, id, set string, args ...any) (*task.Task, error) {
	if err := checkID("update task", id); err != nil {
		return nil, err
	}
	args = append([]any{id}, args...)
	var updated string
	err := s.pool.QueryRow(ctx,
		`UPDATE tasks SET `+set+`, updated_at = now() WHERE id = $1 RETURNING id`, args...).Scan(&updated)
	if err != nil {
		return nil, notFoundWrap(err, "update task %s", id)
	}
	return s.GetTask(ctx, id)
}

func (s *Store) UpdateTaskWorker(ctx context.Context, id, workerID string) (*task.Task, error) {
	return s.updateTask(ctx, id, `worker_id = $2`, nullIfEmpty(workerID))
}

func (s *Store) UpdateTaskStatus(ctx context.Context, id string, isOpen, isComplete bool) (*task.Task, error) {
	return s.updateTask(ctx, id, `is_open = $2, is_complete = $3`, isOpen, isComplete)
}

func (s *Store) UpdateTaskResult(ctx context.Context, id, resultRef string) (*task.Task, error) {
	return s.updateTask(ctx, id, `result_ref = $2`, resultRef)
}

// --- Messages ---

const messageColumns = `id, task_id, author_id, body, kind, seq, created_at`

func scanMessage(row scannable) (task.Message, error) {
	var m task.Message
	err := row.Scan(&m.ID, &m.TaskID, &m.AuthorID, &m.Body, &m.Kind, &m.Seq, &m.CreatedAt)
	return m, err
}

// AppendMessage bumps the task's message counter under a row lock, so seq is
// gap-free and created_at never precedes the previous message.
func (s *Store) AppendMessage(ctx context.Context, taskID string, req task.AppendRequest, kind task.MessageKind) (*task.Message, error) {
	if err := checkID("append message: task", taskID); err != nil {
		return nil, err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var seq int
	err = tx.QueryRow(ctx,
		`UPDATE tasks SET message_count = message_count + 1, updated_at = now()
		 WHERE id = $1 RETURNING message_count`, taskID).Scan(&seq)
	if err != nil {
		return nil, notFoundWrap(err, "append message: task %s", taskID)
	}

	m, err := scanMessage(tx.QueryRow(ctx,
		`INSERT INTO messages (task_id, seq, author_id, body, kind, created_at)
		 VALUES ($1, $2, $3, $4, $5, GREATEST(clock_timestamp(),
		     COALESCE((SELECT max(created_at) FROM messages WHERE task_id = $1), clock_timestamp())))
		 RETURNING `+messageColumns,
		taskID, seq, req.AuthorID, req.Body, string(kind)))
	if err != nil {
		return nil, fmt.Errorf("append message: insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &m, nil
}

func (s *Store) ListMessages(ctx context.Context, taskID string) ([]task.Message, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE task_id = $1 ORDER BY seq`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (task.Message, error) {
		return scanMessage(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: scan: %w", err)
	}
	return orEmpty(msgs), nil
}
