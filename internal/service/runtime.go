package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/codes"

	cfotel "github.com/Strob0t/Exec/internal/adapter/otel"
	"github.com/Strob0t/Exec/internal/domain/action"
	"github.com/Strob0t/Exec/internal/domain/actor"
	"github.com/Strob0t/Exec/internal/domain/persona"
	"github.com/Strob0t/Exec/internal/domain/task"
	"github.com/Strob0t/Exec/internal/port/oracle"
)

// TaskReader is the read side of TaskService used to observe a task.
type TaskReader interface {
	Get(ctx context.Context, id string) (*task.Task, error)
	Transcript(ctx context.Context, id string) ([]task.Message, error)
	Subtasks(ctx context.Context, id string) ([]task.Task, error)
}

// ActorReader loads actors by id.
type ActorReader interface {
	Get(ctx context.Context, id string) (*actor.Actor, error)
}

// Cycle records one decision cycle.
type Cycle struct {
	TaskID   string
	ActorID  string
	Persona  persona.Kind
	Decision string // decision-phase output, verbatim
	Raw      string // action-phase output, verbatim
	Action   action.Action
}

func (c *Cycle) actionName() string {
	if c.Action == nil {
		return ""
	}
	return string(c.Action.Name())
}

// Runtime runs one observe, orient, decide, act pass for an actor on a task.
// No task lock is held while the oracle is consulted; the only writes happen
// through the dispatcher once the action is known.
type Runtime struct {
	tasks      TaskReader
	actors     ActorReader
	oracle     oracle.Oracle
	dispatcher *Dispatcher
	system     string
}

// NewRuntime creates a Runtime. system is the instruction sent with every
// oracle request.
func NewRuntime(tasks TaskReader, actors ActorReader, o oracle.Oracle, d *Dispatcher, system string) *Runtime {
	return &Runtime{tasks: tasks, actors: actors, oracle: o, dispatcher: d, system: system}
}

// Run executes one decision cycle. The returned Cycle is filled as far as the
// cycle got, even on error.
func (r *Runtime) Run(ctx context.Context, taskID, actorID string) (*Cycle, error) {
	cycle := &Cycle{TaskID: taskID, ActorID: actorID}

	t, err := r.tasks.Get(ctx, taskID)
	if err != nil {
		return cycle, err
	}
	a, err := r.actors.Get(ctx, actorID)
	if err != nil {
		return cycle, err
	}
	kind, err := persona.Resolve(t, a)
	if err != nil {
		return cycle, err
	}
	cycle.Persona = kind
	profile, ok := persona.Lookup(kind)
	if !ok {
		return cycle, fmt.Errorf("persona %s: %w", kind, persona.ErrNoPersona)
	}

	obs, err := r.observe(ctx, t, kind)
	if err != nil {
		return cycle, err
	}

	decisionPrompt := persona.DecisionPrompt(profile, obs)
	cycle.Decision, err = r.complete(ctx, "decision", decisionPrompt)
	if err != nil {
		return cycle, err
	}

	cycle.Raw, err = r.complete(ctx, "action", persona.ActionPrompt(profile, decisionPrompt, cycle.Decision))
	if err != nil {
		return cycle, err
	}

	cycle.Action, err = action.ParseAction(cycle.Raw)
	if err != nil {
		return cycle, err
	}

	slog.DebugContext(ctx, "persona acting",
		"task_id", taskID, "actor_id", actorID, "persona", string(kind), "action", string(cycle.Action.Name()))

	return cycle, r.dispatcher.Dispatch(ctx, kind, Invocation{Task: t, Actor: a}, cycle.Action)
}

func (r *Runtime) observe(ctx context.Context, t *task.Task, kind persona.Kind) (persona.Observation, error) {
	obs := persona.Observation{Task: *t}

	msgs, err := r.tasks.Transcript(ctx, t.ID)
	if err != nil {
		return obs, fmt.Errorf("load transcript: %w", err)
	}
	obs.Transcript = msgs

	if kind == persona.ManagerAsWorker && len(t.Subtasks) > 0 {
		subs, err := r.tasks.Subtasks(ctx, t.ID)
		if err != nil {
			return obs, fmt.Errorf("load subtasks: %w", err)
		}
		obs.Subtasks = subs
	}
	return obs, nil
}

func (r *Runtime) complete(ctx context.Context, phase, prompt string) (string, error) {
	ctx, span := cfotel.StartOracleSpan(ctx, phase)
	defer span.End()

	out, err := r.oracle.Complete(ctx, oracle.Request{System: r.system, Prompt: prompt})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("%s phase: %w", phase, err)
	}
	return out, nil
}
