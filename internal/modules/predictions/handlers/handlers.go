// Package handlers provides HTTP handlers for predictions.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/pyethone/betbridge/internal/modules/analytics"
	"github.com/pyethone/betbridge/internal/modules/predictions"
	"github.com/pyethone/betbridge/internal/response"
)

// Handler handles prediction HTTP requests
type Handler struct {
	service   *predictions.Service
	rateLimit int
	rw        response.Writer
	log       zerolog.Logger
}

// NewHandler creates a new predictions handler. rateLimit caps POST /predict
// per client IP per minute; 0 disables the limit.
func NewHandler(service *predictions.Service, rateLimit int, log zerolog.Logger) *Handler {
	l := log.With().Str("handler", "predictions").Logger()
	return &Handler{
		service:   service,
		rateLimit: rateLimit,
		rw:        response.NewWriter(l),
		log:       l,
	}
}

// HandleGetTeams handles GET /api/predict?action=teams
func (h *Handler) HandleGetTeams(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	if action != "" && action != "teams" {
		h.rw.Fail(w, response.InvalidInput("Invalid action"))
		return
	}
	h.rw.OK(w, http.StatusOK, response.Fields{"teams": h.service.Teams()})
}

// HandlePredict handles POST /api/predict
func (h *Handler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictions.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.rw.Fail(w, response.InvalidInput("Invalid JSON").Wrap(err))
		return
	}

	prediction, err := h.service.Predict(r.Context(), req)
	if err != nil {
		h.rw.Fail(w, err)
		return
	}

	h.rw.OK(w, http.StatusOK, response.Fields{"data": prediction.Payload})
}

// HandleSave handles POST /api/predictions/save
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		h.rw.Fail(w, response.InvalidInput("Invalid JSON").Wrap(err))
		return
	}
	var req analytics.SaveRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		h.rw.Fail(w, response.InvalidInput("Invalid JSON").Wrap(err))
		return
	}
	req.Raw = raw

	saved, err := h.service.Save(r.Context(), req)
	if err != nil {
		h.rw.Fail(w, err)
		return
	}

	fields := response.Fields{"message": "Prediction saved"}
	if saved.ID != 0 {
		fields["id"] = saved.ID
		fields["match_id"] = saved.MatchID
	}
	h.rw.OK(w, http.StatusOK, fields)
}

func (h *Handler) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	h.rw.Fail(w, response.NewError(response.KindRateLimited, "Too many prediction requests, try again later"))
}
