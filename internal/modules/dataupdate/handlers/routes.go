package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the data update routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/update-data", h.HandleInfo)
	r.Post("/update-data", h.HandleTrigger)
	r.Get("/update-data/jobs", h.HandleListJobs)
	r.Get("/update-data/jobs/{id}", h.HandleGetJob)
}
