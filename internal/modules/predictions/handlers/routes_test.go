package handlers

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	testingpkg "github.com/pyethone/betbridge/internal/testing"
)

func TestRegisterRoutes(t *testing.T) {
	router, _ := setup(t, testingpkg.NewMockRunner(nil), 10)

	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodGet, "/api/predict", true},
		{http.MethodPost, "/api/predict", true},
		{http.MethodPost, "/api/predictions/save", true},
		{http.MethodGet, "/api/predictions/save", false},
		{http.MethodPut, "/api/predict", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, router.Match(chi.NewRouteContext(), tt.method, tt.path), "%s %s", tt.method, tt.path)
	}
}
