package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the /api/v1 routes on the given chi router. The
// extra middleware applies to the API group only, so /health and /ws stay
// outside it.
func MountRoutes(r chi.Router, h *Handlers, mw ...func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw...)

		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
		})

		// Actors
		r.Get("/actors", handleList(h.Actors.List))
		r.Post("/actors", handleCreate(h.BodyLimit, h.Actors.Create))
		r.Get("/actors/{id}", handleGet(h.Actors.Get, "actor not found"))
		r.Get("/actors/{id}/tasks", handleListByID(h.Tasks.FindByParticipant, "actor not found"))

		// Tasks
		r.Get("/tasks", handleList(h.Tasks.List))
		r.Post("/tasks", handleCreate(h.BodyLimit, h.Tasks.CreateTask))
		r.Get("/tasks/{id}", handleGet(h.Tasks.Get, "task not found"))
		r.Get("/tasks/{id}/subtasks", handleListByID(h.Tasks.Subtasks, "task not found"))
		r.Post("/tasks/{id}/subtasks", h.CreateSubtask)
		r.Put("/tasks/{id}/worker", h.AssignWorker)
		r.Post("/tasks/{id}/complete", h.MarkComplete)
		r.Post("/tasks/{id}/close", h.CloseTask)
		r.Put("/tasks/{id}/result", h.SetResult)

		// Discussion
		r.Get("/tasks/{id}/messages", handleListByID(h.Tasks.Transcript, "task not found"))
		r.Post("/tasks/{id}/messages", h.PostMessage)
	})
}
