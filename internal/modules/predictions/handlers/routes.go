package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// RegisterRoutes registers the prediction routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/predict", h.HandleGetTeams)

	r.Group(func(r chi.Router) {
		// Every prediction spawns an engine process
		if h.rateLimit > 0 {
			r.Use(httprate.Limit(h.rateLimit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(h.handleRateLimited),
			))
		}
		r.Post("/predict", h.HandlePredict)
	})

	r.Post("/predictions/save", h.HandleSave)
}
