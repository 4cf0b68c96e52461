package http

import (
	"context"
	"net/http"

	"github.com/Strob0t/Exec/internal/domain/task"
	"github.com/Strob0t/Exec/internal/service"
)

// StatsSource reports orchestrator counters for the health endpoint.
type StatsSource interface {
	Stats() service.Stats
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Actors       *service.ActorService
	Tasks        *service.TaskService
	Orchestrator StatsSource
	BodyLimit    int64
	Version      string
}

// assignWorkerRequest is the body of PUT /tasks/{id}/worker.
type assignWorkerRequest struct {
	WorkerID  string `json:"worker_id"`
	ByActorID string `json:"by_actor_id"`
}

// statusRequest is the body of the complete and close endpoints.
type statusRequest struct {
	ByActorID string `json:"by_actor_id"`
}

// resultRequest is the body of PUT /tasks/{id}/result.
type resultRequest struct {
	ResultRef string `json:"result_ref"`
	ByActorID string `json:"by_actor_id"`
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status       string         `json:"status"`
	Version      string         `json:"version,omitempty"`
	Orchestrator *service.Stats `json:"orchestrator,omitempty"`
}

// Health reports liveness and, when wired, the orchestrator counters.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Version: h.Version}
	if h.Orchestrator != nil {
		st := h.Orchestrator.Stats()
		resp.Orchestrator = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateSubtask handles POST /tasks/{id}/subtasks.
func (h *Handlers) CreateSubtask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.CreateRequest](w, r, h.BodyLimit)
	if !ok {
		return
	}
	t, err := h.Tasks.CreateSubtask(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, r, err, "parent task not found")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// AssignWorker handles PUT /tasks/{id}/worker.
func (h *Handlers) AssignWorker(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[assignWorkerRequest](w, r, h.BodyLimit)
	if !ok {
		return
	}
	if !requireField(w, req.WorkerID, "worker_id") || !requireField(w, req.ByActorID, "by_actor_id") {
		return
	}
	t, err := h.Tasks.AssignWorker(r.Context(), urlParam(r, "id"), req.WorkerID, req.ByActorID)
	if err != nil {
		writeDomainError(w, r, err, "task or actor not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// MarkComplete handles POST /tasks/{id}/complete.
func (h *Handlers) MarkComplete(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.Tasks.MarkComplete)
}

// CloseTask handles POST /tasks/{id}/close.
func (h *Handlers) CloseTask(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.Tasks.Close)
}

func (h *Handlers) changeStatus(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, taskID, byActorID string) (*task.Task, error)) {
	req, ok := readJSON[statusRequest](w, r, h.BodyLimit)
	if !ok {
		return
	}
	if !requireField(w, req.ByActorID, "by_actor_id") {
		return
	}
	t, err := apply(r.Context(), urlParam(r, "id"), req.ByActorID)
	if err != nil {
		writeDomainError(w, r, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// SetResult handles PUT /tasks/{id}/result.
func (h *Handlers) SetResult(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[resultRequest](w, r, h.BodyLimit)
	if !ok {
		return
	}
	if !requireField(w, req.ResultRef, "result_ref") || !requireField(w, req.ByActorID, "by_actor_id") {
		return
	}
	t, err := h.Tasks.SetResult(r.Context(), urlParam(r, "id"), req.ResultRef, req.ByActorID)
	if err != nil {
		writeDomainError(w, r, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// PostMessage handles POST /tasks/{id}/messages.
func (h *Handlers) PostMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.AppendRequest](w, r, h.BodyLimit)
	if !ok {
		return
	}
	m, err := h.Tasks.AppendMessage(r.Context(), urlParam(r, "id"), req.AuthorID, req.Body)
	if err != nil {
		writeDomainError(w, r, err, "task or author not found")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}
