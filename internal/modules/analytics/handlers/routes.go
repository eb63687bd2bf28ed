package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the analytics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/analytics", h.HandleGet)
	r.Post("/analytics", h.HandlePost)
}
