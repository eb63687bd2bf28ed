package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the retraining routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/retrain", h.HandleInfo)
	r.Post("/retrain", h.HandleTrigger)
	r.Get("/retrain/jobs", h.HandleListJobs)
	r.Get("/retrain/jobs/{id}", h.HandleGetJob)
}
