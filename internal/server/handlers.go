package server

import (
	"encoding/json"
	"net/http"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if err := s.container.PredictionsDB.QuickCheck(r.Context()); err != nil {
		s.log.Warn().Err(err).Msg("Health check failed")
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":  status,
		"service": "betbridge",
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
