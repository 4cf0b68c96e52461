package service

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/Exec/internal/adapter/otel"
	"github.com/Strob0t/Exec/internal/domain/action"
	"github.com/Strob0t/Exec/internal/domain/actor"
	"github.com/Strob0t/Exec/internal/domain/persona"
	"github.com/Strob0t/Exec/internal/domain/task"
)

// TaskMutator is the slice of TaskService the dispatcher writes through.
type TaskMutator interface {
	AppendMessage(ctx context.Context, taskID, authorID, body string) (*task.Message, error)
	CreateSubtask(ctx context.Context, parentID string, req task.CreateRequest) (*task.Task, error)
	MarkComplete(ctx context.Context, taskID, byActorID string) (*task.Task, error)
}

// Lookups runs the external tool capabilities.
type Lookups interface {
	Search(ctx context.Context, query string) (string, error)
	Fetch(ctx context.Context, url string) (string, error)
}

// AgentPicker chooses the agent that works a new subtask.
type AgentPicker interface {
	DefaultAgent(ctx context.Context) (*actor.Actor, error)
}

// Invocation is who acts on which task.
type Invocation struct {
	Task  *task.Task
	Actor *actor.Actor
}

// Handler executes one action for an invocation.
type Handler func(ctx context.Context, inv Invocation, a action.Action) error

// Dispatcher maps (persona, action name) to a handler. The table is fixed at
// construction and matches each persona's advertised vocabulary exactly.
type Dispatcher struct {
	tasks   TaskMutator
	tools   Lookups
	agents  AgentPicker
	table   map[persona.Kind]map[action.Name]Handler
	metrics *cfotel.Metrics
}

// NewDispatcher builds the action table. It fails if any persona advertises
// an action without a handler, or binds one it does not advertise.
func NewDispatcher(tasks TaskMutator, tools Lookups, agents AgentPicker, metrics *cfotel.Metrics) (*Dispatcher, error) {
	d := &Dispatcher{tasks: tasks, tools: tools, agents: agents, metrics: metrics}
	d.table = map[persona.Kind]map[action.Name]Handler{
		persona.WorkerAgent: {
			action.NameMessageClient: bind(d.messageClient),
			action.NameSearchWeb:     bind(d.searchWeb),
			action.NameAccessURL:     bind(d.accessURL),
		},
		persona.ManagerAsWorker: {
			action.NameMessageClient: bind(d.messageClient),
			action.NameCreatePlan:    bind(d.createPlan),
			action.NameCreateSubtask: bind(d.createSubtask),
		},
		persona.ManagerAsClient: {
			action.NameMessageWorker: bind(d.messageWorker),
		},
		persona.Client: {
			action.NameMessageWorker:    bind(d.messageWorker),
			action.NameMarkTaskComplete: bind(d.markComplete),
		},
	}
	if err := d.verify(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) verify() error {
	for _, k := range persona.All {
		p, ok := persona.Lookup(k)
		if !ok {
			return fmt.Errorf("persona %s has no profile", k)
		}
		handlers := d.table[k]
		for _, e := range p.Vocabulary {
			if _, ok := handlers[e.Name]; !ok {
				return fmt.Errorf("persona %s advertises %s without a handler", k, e.Name)
			}
		}
		for name := range handlers {
			if !p.Advertises(name) {
				return fmt.Errorf("persona %s binds %s without advertising it", k, name)
			}
		}
	}
	return nil
}

// Bound returns the action names bound for persona k, sorted.
func (d *Dispatcher) Bound(k persona.Kind) []action.Name {
	names := make([]action.Name, 0, len(d.table[k]))
	for name := range d.table[k] {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Dispatch executes a for persona k. Names outside the persona's table fail
// with action.ErrUnsupportedAction.
func (d *Dispatcher) Dispatch(ctx context.Context, k persona.Kind, inv Invocation, a action.Action) error {
	h, ok := d.table[k][a.Name()]
	if !ok {
		return fmt.Errorf("%w: %s for persona %s", action.ErrUnsupportedAction, a.Name(), k)
	}

	ctx, span := cfotel.StartActionSpan(ctx, string(k), string(a.Name()))
	defer span.End()

	if err := h(ctx, inv, a); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", a.Name(), err)
	}
	if d.metrics != nil {
		d.metrics.ActionsDispatched.Add(ctx, 1, metric.WithAttributes(
			attribute.String("persona", string(k)),
			attribute.String("action", string(a.Name())),
		))
	}
	return nil
}

// bind adapts a handler for one concrete variant to the table signature.
func bind[A action.Action](fn func(ctx context.Context, inv Invocation, a A) error) Handler {
	return func(ctx context.Context, inv Invocation, a action.Action) error {
		v, ok := a.(A)
		if !ok {
			return fmt.Errorf("%w: %s", action.ErrUnsupportedAction, a.Name())
		}
		return fn(ctx, inv, v)
	}
}

func (d *Dispatcher) messageClient(ctx context.Context, inv Invocation, a action.MessageClient) error {
	_, err := d.tasks.AppendMessage(ctx, inv.Task.ID, inv.Actor.ID, a.Text)
	return err
}

func (d *Dispatcher) messageWorker(ctx context.Context, inv Invocation, a action.MessageWorker) error {
	_, err := d.tasks.AppendMessage(ctx, inv.Task.ID, inv.Actor.ID, a.Text)
	return err
}

func (d *Dispatcher) createPlan(ctx context.Context, inv Invocation, a action.CreatePlan) error {
	_, err := d.tasks.AppendMessage(ctx, inv.Task.ID, inv.Actor.ID, "Plan: "+a.Text)
	return err
}

func (d *Dispatcher) searchWeb(ctx context.Context, inv Invocation, a action.SearchWeb) error {
	out, err := d.tools.Search(ctx, a.Query)
	if err != nil {
		return err
	}
	_, err = d.tasks.AppendMessage(ctx, inv.Task.ID, inv.Actor.ID, out)
	return err
}

func (d *Dispatcher) accessURL(ctx context.Context, inv Invocation, a action.AccessURL) error {
	out, err := d.tools.Fetch(ctx, a.URL)
	if err != nil {
		return err
	}
	_, err = d.tasks.AppendMessage(ctx, inv.Task.ID, inv.Actor.ID, out)
	return err
}

func (d *Dispatcher) createSubtask(ctx context.Context, inv Invocation, a action.CreateSubtask) error {
	agent, err := d.agents.DefaultAgent(ctx)
	if err != nil {
		return err
	}
	_, err = d.tasks.CreateSubtask(ctx, inv.Task.ID, task.CreateRequest{
		Title:    a.Title,
		ClientID: inv.Actor.ID,
		WorkerID: agent.ID,
	})
	return err
}

func (d *Dispatcher) markComplete(ctx context.Context, inv Invocation, _ action.MarkTaskComplete) error {
	_, err := d.tasks.MarkComplete(ctx, inv.Task.ID, inv.Actor.ID)
	return err
}
