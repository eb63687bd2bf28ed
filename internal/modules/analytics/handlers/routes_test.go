package handlers

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRegisterRoutes(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	handler := NewHandler(failingStore{}, logger)

	router := chi.NewRouter()
	assert.NotPanics(t, func() {
		handler.RegisterRoutes(router)
	})

	rctx := chi.NewRouteContext()
	assert.True(t, router.Match(rctx, http.MethodGet, "/analytics"))
	assert.True(t, router.Match(chi.NewRouteContext(), http.MethodPost, "/analytics"))
	assert.False(t, router.Match(chi.NewRouteContext(), http.MethodDelete, "/analytics"))
}
