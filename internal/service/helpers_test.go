package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Strob0t/Exec/internal/adapter/membus"
	"github.com/Strob0t/Exec/internal/adapter/memstore"
	"github.com/Strob0t/Exec/internal/domain/actor"
	"github.com/Strob0t/Exec/internal/port/notification"
	"github.com/Strob0t/Exec/internal/port/oracle"
	"github.com/Strob0t/Exec/internal/service"
)

// recorder captures every event published on a bus.
type recorder struct {
	mu     sync.Mutex
	events []notification.Event
}

func (r *recorder) handle(_ context.Context, ev notification.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) all() []notification.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notification.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) ofKind(k notification.EventKind) []notification.Event {
	var out []notification.Event
	for _, ev := range r.all() {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	store  *memstore.Store
	bus    *membus.Bus
	rec    *recorder
	tasks  *service.TaskService
	actors *service.ActorService

	admin, alice, manager, agent actor.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memstore.New(), bus: membus.New(), rec: &recorder{}}
	if _, err := f.bus.Subscribe(context.Background(), f.rec.handle); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	f.tasks = service.NewTaskService(f.store, f.bus)
	f.actors = service.NewActorService(f.store, "agent")

	seeded, err := f.actors.Seed(context.Background())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	for _, a := range seeded {
		switch a.Name {
		case "admin":
			f.admin = a
		case "alice":
			f.alice = a
		case "manager":
			f.manager = a
		case "agent":
			f.agent = a
		}
	}
	return f
}

// scriptedOracle answers decision prompts with a fixed sentence and action
// prompts through act. Calls are counted per phase.
type scriptedOracle struct {
	mu        sync.Mutex
	act       func(prompt string) string
	decision  string
	fail      error
	decisions int
	actions   int
	requests  []oracle.Request
}

func (o *scriptedOracle) Complete(ctx context.Context, req oracle.Request) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if o.fail != nil {
		return "", o.fail
	}
	if !strings.Contains(req.Prompt, "### ACT ###") {
		o.decisions++
		if o.decision == "" {
			return "I will do the next sensible thing.", nil
		}
		return o.decision, nil
	}
	o.actions++
	return o.act(req.Prompt), nil
}

func (o *scriptedOracle) calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.requests)
}

// byPersona picks the action text from the vocabulary shown in an action
// prompt.
func byPersona(agent, managerAsWorker, managerAsClient, client string) func(string) string {
	return func(prompt string) string {
		switch {
		case strings.Contains(prompt, "- SEARCH_WEB(QUERY)"):
			return agent
		case strings.Contains(prompt, "- CREATE_SUBTASK(TITLE)"):
			return managerAsWorker
		case strings.Contains(prompt, "- MARK_TASK_COMPLETE()"):
			return client
		default:
			return managerAsClient
		}
	}
}

type fakeLookups struct {
	search func(q string) (string, error)
	fetch  func(url string) (string, error)
}

func (f *fakeLookups) Search(_ context.Context, q string) (string, error) {
	if f.search == nil {
		return "", errors.New("search unavailable")
	}
	return f.search(q)
}

func (f *fakeLookups) Fetch(_ context.Context, url string) (string, error) {
	if f.fetch == nil {
		return "", errors.New("fetch unavailable")
	}
	return f.fetch(url)
}
