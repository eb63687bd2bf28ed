package handlers

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	testingpkg "github.com/pyethone/betbridge/internal/testing"
)

func TestRegisterRoutes(t *testing.T) {
	router, _ := setup(t, testingpkg.NewMockRunner(nil))

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/retrain"},
		{http.MethodPost, "/api/retrain"},
		{http.MethodGet, "/api/retrain/jobs"},
		{http.MethodGet, "/api/retrain/jobs/abc"},
	}
	for _, tt := range tests {
		assert.True(t, router.Match(chi.NewRouteContext(), tt.method, tt.path), "%s %s", tt.method, tt.path)
	}
	assert.False(t, router.Match(chi.NewRouteContext(), http.MethodDelete, "/api/retrain"))
}
