package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	cfhttp "github.com/Strob0t/Exec/internal/adapter/http"
	"github.com/Strob0t/Exec/internal/adapter/membus"
	"github.com/Strob0t/Exec/internal/adapter/memstore"
	"github.com/Strob0t/Exec/internal/adapter/ristretto"
	"github.com/Strob0t/Exec/internal/domain/actor"
	"github.com/Strob0t/Exec/internal/domain/task"
	"github.com/Strob0t/Exec/internal/middleware"
	"github.com/Strob0t/Exec/internal/port/notification"
	"github.com/Strob0t/Exec/internal/service"
)

type eventLog struct {
	mu     sync.Mutex
	events []notification.Event
}

func (l *eventLog) handle(_ context.Context, ev notification.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) count(kind notification.EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

type fakeStats struct{}

func (fakeStats) Stats() service.Stats { return service.Stats{Enqueued: 3, Completed: 2} }

type testServer struct {
	router http.Handler
	events *eventLog
	actors map[string]actor.Actor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	store := memstore.New()
	bus := membus.New()
	events := &eventLog{}
	if _, err := bus.Subscribe(ctx, events.handle); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	actors := service.NewActorService(store, "agent")
	seeded, err := actors.Seed(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	byName := make(map[string]actor.Actor, len(seeded))
	for _, a := range seeded {
		byName[a.Name] = a
	}

	idem, err := ristretto.New(1 << 20)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	t.Cleanup(idem.Close)

	h := &cfhttp.Handlers{
		Actors:       actors,
		Tasks:        service.NewTaskService(store, bus),
		Orchestrator: fakeStats{},
		BodyLimit:    1 << 16,
		Version:      "test",
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Get("/health", h.Health)
	cfhttp.MountRoutes(r, h, middleware.Idempotency(idem, time.Minute))

	return &testServer{router: r, events: events, actors: byName}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func (s *testServer) createTask(t *testing.T, title, clientID, workerID string) task.Task {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/tasks", task.CreateRequest{Title: title, ClientID: clientID, WorkerID: workerID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decode[task.Task](t, rec)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	orch, ok := body["orchestrator"].(map[string]any)
	if !ok || orch["enqueued"] != float64(3) {
		t.Errorf("expected orchestrator stats, got %v", body["orchestrator"])
	}
}

func TestListActors(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/actors", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	actors := decode[[]actor.Actor](t, rec)
	if len(actors) != 4 {
		t.Fatalf("expected 4 seeded actors, got %d", len(actors))
	}
}

func TestCreateActor(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/actors", actor.CreateRequest{Name: "bob", Kind: actor.KindHuman})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/api/v1/actors", actor.CreateRequest{Name: "x", Kind: "robot"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", rec.Code)
	}
}

func TestGetActorNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/actors/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec)["error"]; got != "actor not found" {
		t.Errorf("unexpected error message %q", got)
	}
}

func TestCreateTask(t *testing.T) {
	s := newTestServer(t)
	alice, agent := s.actors["alice"], s.actors["agent"]

	tk := s.createTask(t, "Find flights", alice.ID, agent.ID)
	if !tk.IsOpen || tk.IsComplete {
		t.Errorf("new task should be open and incomplete: %+v", tk)
	}
	if tk.Subtasks == nil {
		t.Error("subtasks should encode as an empty list")
	}
	if n := s.events.count(notification.EventAssigned); n != 1 {
		t.Errorf("expected 1 assigned event, got %d", n)
	}

	rec := s.do(t, http.MethodGet, "/api/v1/tasks/"+tk.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get task: expected 200, got %d", rec.Code)
	}
}

func TestCreateTaskErrors(t *testing.T) {
	s := newTestServer(t)
	alice := s.actors["alice"]

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing title", task.CreateRequest{ClientID: alice.ID}, http.StatusBadRequest},
		{"missing client", task.CreateRequest{Title: "t"}, http.StatusBadRequest},
		{"unknown client", task.CreateRequest{Title: "t", ClientID: "ghost"}, http.StatusNotFound},
		{"malformed json", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/tasks", tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestBodyTooLarge(t *testing.T) {
	s := newTestServer(t)
	big := task.CreateRequest{Title: strings.Repeat("x", 1<<17), ClientID: s.actors["alice"].ID}
	rec := s.do(t, http.MethodPost, "/api/v1/tasks", big)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestMessagesRoundTrip(t *testing.T) {
	s := newTestServer(t)
	alice, agent := s.actors["alice"], s.actors["agent"]
	tk := s.createTask(t, "Plan a trip", alice.ID, agent.ID)

	for _, body := range []string{"first", "second"} {
		rec := s.do(t, http.MethodPost, "/api/v1/tasks/"+tk.ID+"/messages", task.AppendRequest{AuthorID: alice.ID, Body: body})
		if rec.Code != http.StatusCreated {
			t.Fatalf("post message: expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	}

	rec := s.do(t, http.MethodGet, "/api/v1/tasks/"+tk.ID+"/messages", nil)
	msgs := decode[[]task.Message](t, rec)
	if len(msgs) != 2 || msgs[0].Body != "first" || msgs[1].Seq != 2 {
		t.Fatalf("unexpected transcript: %+v", msgs)
	}
	if n := s.events.count(notification.EventMessage); n != 2 {
		t.Errorf("expected 2 message events, got %d", n)
	}
}

func TestPostMessageErrors(t *testing.T) {
	s := newTestServer(t)
	alice := s.actors["alice"]
	tk := s.createTask(t, "t", alice.ID, "")

	tests := []struct {
		name string
		path string
		body task.AppendRequest
		want int
	}{
		{"empty body", "/api/v1/tasks/" + tk.ID + "/messages", task.AppendRequest{AuthorID: alice.ID}, http.StatusBadRequest},
		{"unknown task", "/api/v1/tasks/nope/messages", task.AppendRequest{AuthorID: alice.ID, Body: "hi"}, http.StatusNotFound},
		{"unknown author", "/api/v1/tasks/" + tk.ID + "/messages", task.AppendRequest{AuthorID: "ghost", Body: "hi"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestIdempotentMessagePost(t *testing.T) {
	s := newTestServer(t)
	alice, agent := s.actors["alice"], s.actors["agent"]
	tk := s.createTask(t, "t", alice.ID, agent.ID)
	path := "/api/v1/tasks/" + tk.ID + "/messages"
	msg := task.AppendRequest{AuthorID: alice.ID, Body: "once"}

	first := s.do(t, http.MethodPost, path, msg, "Idempotency-Key", "retry-1")
	second := s.do(t, http.MethodPost, path, msg, "Idempotency-Key", "retry-1")
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected 201 twice, got %d and %d", first.Code, second.Code)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("second post was not replayed")
	}

	msgs := decode[[]task.Message](t, s.do(t, http.MethodGet, path, nil))
	if len(msgs) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(msgs))
	}
	if n := s.events.count(notification.EventMessage); n != 1 {
		t.Errorf("expected 1 message event, got %d", n)
	}
}

func TestSubtasks(t *testing.T) {
	s := newTestServer(t)
	alice, manager, agent := s.actors["alice"], s.actors["manager"], s.actors["agent"]
	parent := s.createTask(t, "Organise offsite", alice.ID, manager.ID)

	rec := s.do(t, http.MethodPost, "/api/v1/tasks/"+parent.ID+"/subtasks",
		task.CreateRequest{Title: "Book venue", ClientID: manager.ID, WorkerID: agent.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	child := decode[task.Task](t, rec)
	if child.ParentID != parent.ID {
		t.Errorf("expected parent %s, got %s", parent.ID, child.ParentID)
	}

	subs := decode[[]task.Task](t, s.do(t, http.MethodGet, "/api/v1/tasks/"+parent.ID+"/subtasks", nil))
	if len(subs) != 1 || subs[0].ID != child.ID {
		t.Fatalf("unexpected subtasks: %+v", subs)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/tasks/nope/subtasks", task.CreateRequest{Title: "x", ClientID: manager.ID})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing parent: expected 404, got %d", rec.Code)
	}
}

func TestAssignWorkerAndStatus(t *testing.T) {
	s := newTestServer(t)
	alice, agent := s.actors["alice"], s.actors["agent"]
	tk := s.createTask(t, "Unrouted", alice.ID, "")
	base := "/api/v1/tasks/" + tk.ID

	rec := s.do(t, http.MethodPut, base+"/worker", map[string]string{"worker_id": agent.ID, "by_actor_id": alice.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[task.Task](t, rec); got.WorkerID != agent.ID {
		t.Fatalf("expected worker %s, got %s", agent.ID, got.WorkerID)
	}

	rec = s.do(t, http.MethodPut, base+"/result", map[string]string{"result_ref": "s3://bucket/report.md", "by_actor_id": agent.ID})
	if got := decode[task.Task](t, rec); got.ResultRef != "s3://bucket/report.md" {
		t.Fatalf("expected result ref, got %+v", got)
	}

	rec = s.do(t, http.MethodPost, base+"/complete", map[string]string{"by_actor_id": agent.ID})
	if got := decode[task.Task](t, rec); !got.IsComplete {
		t.Fatal("expected task complete")
	}

	rec = s.do(t, http.MethodPost, base+"/close", map[string]string{"by_actor_id": alice.ID})
	if got := decode[task.Task](t, rec); got.IsOpen {
		t.Fatal("expected task closed")
	}

	rec = s.do(t, http.MethodPut, base+"/worker", map[string]string{"worker_id": agent.ID, "by_actor_id": alice.ID})
	if rec.Code != http.StatusConflict {
		t.Fatalf("assign on closed task: expected 409, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, base+"/complete", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing by_actor_id: expected 400, got %d", rec.Code)
	}
}

func TestActorTasks(t *testing.T) {
	s := newTestServer(t)
	alice, agent, admin := s.actors["alice"], s.actors["agent"], s.actors["admin"]
	s.createTask(t, "one", alice.ID, agent.ID)
	s.createTask(t, "two", admin.ID, agent.ID)

	tasks := decode[[]task.Task](t, s.do(t, http.MethodGet, "/api/v1/actors/"+agent.ID+"/tasks", nil))
	if len(tasks) != 2 {
		t.Fatalf("expected agent on 2 tasks, got %d", len(tasks))
	}
	tasks = decode[[]task.Task](t, s.do(t, http.MethodGet, "/api/v1/actors/"+alice.ID+"/tasks", nil))
	if len(tasks) != 1 {
		t.Fatalf("expected alice on 1 task, got %d", len(tasks))
	}

	rec := s.do(t, http.MethodGet, "/api/v1/actors/ghost/tasks", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListTasksEmpty(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/tasks", nil)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", rec.Body.String())
	}
}
