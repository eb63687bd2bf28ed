// Package handlers provides HTTP handlers for the prediction analytics store.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/pyethone/betbridge/internal/modules/analytics"
	"github.com/pyethone/betbridge/internal/response"
	"github.com/pyethone/betbridge/internal/validation"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// Store is the part of the analytics repository the handlers use
type Store interface {
	List(ctx context.Context, limit, offset int) ([]analytics.Prediction, int, error)
	Stats(ctx context.Context) (*analytics.Stats, error)
	AccuracyStats(ctx context.Context) (*analytics.AccuracyStats, error)
	Calibration(ctx context.Context) (*analytics.CalibrationReport, error)
	Delete(ctx context.Context, id int64) error
	UpdateMatchDate(ctx context.Context, id int64, matchDate *string) error
	RecordResult(ctx context.Context, result analytics.MatchResult) (*analytics.Prediction, error)
}

// Handler handles analytics HTTP requests
type Handler struct {
	store Store
	rw    response.Writer
	log   zerolog.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(store Store, log zerolog.Logger) *Handler {
	l := log.With().Str("handler", "analytics").Logger()
	return &Handler{
		store: store,
		rw:    response.NewWriter(l),
		log:   l,
	}
}

type action func(w http.ResponseWriter, r *http.Request)

func (h *Handler) queries() map[string]action {
	return map[string]action{
		"list_predictions": h.handleListPredictions,
		"stats":            h.handleStats,
		"accuracy_stats":   h.handleAccuracyStats,
		"calibration":      h.handleCalibration,
	}
}

func (h *Handler) commands() map[string]action {
	return map[string]action{
		"delete_prediction": h.handleDeletePrediction,
		"update_match_date": h.handleUpdateMatchDate,
		"record_result":     h.handleRecordResult,
	}
}

// HandleGet handles GET /api/analytics?action=list_predictions|stats|accuracy_stats|calibration
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, h.queries(), h.commands())
}

// HandlePost handles POST /api/analytics?action=delete_prediction|update_match_date|record_result
func (h *Handler) HandlePost(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, h.commands(), h.queries())
}

// dispatch runs the named action. An action that exists only for the other
// method is a 405.
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, allowed, other map[string]action) {
	name := r.URL.Query().Get("action")
	if fn, ok := allowed[name]; ok {
		fn(w, r)
		return
	}
	if _, ok := other[name]; ok {
		h.rw.Fail(w, response.NewError(response.KindMethodNotAllowed, "Method not allowed"))
		return
	}
	h.rw.Fail(w, response.InvalidInput("Invalid action"))
}

func (h *Handler) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultListLimit, 1, maxListLimit)
	if err != nil {
		h.rw.Fail(w, err)
		return
	}
	offset, err := intParam(r, "offset", 0, 0, -1)
	if err != nil {
		h.rw.Fail(w, err)
		return
	}

	predictions, total, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.rw.Fail(w, response.Datastore(err))
		return
	}

	h.rw.OK(w, http.StatusOK, response.Fields{
		"predictions": predictions,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.rw.Fail(w, response.Datastore(err))
		return
	}
	h.rw.OK(w, http.StatusOK, response.Fields{"stats": stats})
}

func (h *Handler) handleAccuracyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.AccuracyStats(r.Context())
	if err != nil {
		h.rw.Fail(w, response.Datastore(err))
		return
	}
	h.rw.OK(w, http.StatusOK, response.Fields{"stats": stats})
}

func (h *Handler) handleCalibration(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.Calibration(r.Context())
	if err != nil {
		h.rw.Fail(w, response.Datastore(err))
		return
	}
	h.rw.OK(w, http.StatusOK, response.Fields{"calibration": report})
}

type deleteRequest struct {
	ID int64 `json:"id" validate:"required,gt=0"`
}

func (h *Handler) handleDeletePrediction(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.store.Delete(r.Context(), req.ID); err != nil {
		h.rw.Fail(w, storeError(err))
		return
	}

	h.log.Info().Int64("id", req.ID).Msg("Prediction deleted")
	h.rw.OK(w, http.StatusOK, response.Fields{"message": "Prediction deleted", "id": req.ID})
}

type updateMatchDateRequest struct {
	ID        int64   `json:"id" validate:"required,gt=0"`
	MatchDate *string `json:"match_date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) handleUpdateMatchDate(w http.ResponseWriter, r *http.Request) {
	var req updateMatchDateRequest
	if !h.decode(w, r, &req) {
		return
	}
	// An empty date clears it, like null
	if req.MatchDate != nil && *req.MatchDate == "" {
		req.MatchDate = nil
	}

	if err := h.store.UpdateMatchDate(r.Context(), req.ID, req.MatchDate); err != nil {
		h.rw.Fail(w, storeError(err))
		return
	}

	h.rw.OK(w, http.StatusOK, response.Fields{
		"message":    "Match date updated",
		"id":         req.ID,
		"match_date": req.MatchDate,
	})
}

func (h *Handler) handleRecordResult(w http.ResponseWriter, r *http.Request) {
	var req analytics.MatchResult
	if !h.decode(w, r, &req) {
		return
	}

	prediction, err := h.store.RecordResult(r.Context(), req)
	if err != nil {
		h.rw.Fail(w, storeError(err))
		return
	}

	h.rw.OK(w, http.StatusOK, response.Fields{
		"message":    "Match result recorded",
		"prediction": prediction,
	})
}

// decode reads and validates a JSON body, writing the failure envelope when it
// returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.rw.Fail(w, response.InvalidInput("Invalid JSON body").Wrap(err))
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		h.rw.Fail(w, response.InvalidInput(verr.Error()).WithDetails(verr.Details()))
		return false
	}
	return true
}

func storeError(err error) error {
	switch {
	case errors.Is(err, analytics.ErrNotFound):
		return response.NewError(response.KindNotFound, "Prediction not found").Wrap(err)
	case errors.Is(err, analytics.ErrDuplicate):
		return response.NewError(response.KindConflict, analytics.ErrDuplicate.Error()).Wrap(err)
	default:
		return response.Datastore(err)
	}
}

// intParam reads an integer query parameter within [min, max]; max < 0 means unbounded.
func intParam(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || (max >= 0 && v > max) {
		if max >= 0 {
			return 0, response.InvalidInput(fmt.Sprintf("%s must be an integer between %d and %d", name, min, max))
		}
		return 0, response.InvalidInput(fmt.Sprintf("%s must be an integer >= %d", name, min))
	}
	return v, nil
}
