// Package handlers provides HTTP handlers for model retraining.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pyethone/betbridge/internal/jobs"
	"github.com/pyethone/betbridge/internal/modules/retraining"
	"github.com/pyethone/betbridge/internal/response"
)

// Handler handles retraining HTTP requests
type Handler struct {
	service *retraining.Service
	rw      response.Writer
	log     zerolog.Logger
}

// NewHandler creates a new retraining handler
func NewHandler(service *retraining.Service, log zerolog.Logger) *Handler {
	l := log.With().Str("handler", "retraining").Logger()
	return &Handler{
		service: service,
		rw:      response.NewWriter(l),
		log:     l,
	}
}

type triggerRequest struct {
	Action string `json:"action"`
}

// HandleTrigger handles POST /api/retrain. An empty body means {"action": "retrain"}.
func (h *Handler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	req := triggerRequest{Action: "retrain"}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.rw.Fail(w, response.InvalidInput("Invalid JSON").Wrap(err))
		return
	}
	if req.Action != "retrain" {
		h.rw.Fail(w, response.InvalidInput("Invalid action"))
		return
	}

	job, err := h.service.Trigger()
	if errors.Is(err, jobs.ErrAlreadyRunning) {
		details := response.Fields{}
		if running, ok := h.service.Running(); ok {
			details["job_id"] = running.ID
		}
		h.rw.Fail(w, response.NewError(response.KindConflict, "Retraining is already in progress").
			WithDetails(details).Wrap(err))
		return
	}
	if err != nil {
		h.rw.Fail(w, response.NewError(response.KindEngineFailed, "Retraining could not be started").Wrap(err))
		return
	}

	h.log.Info().Str("job_id", job.ID).Msg("Retraining triggered")
	h.rw.OK(w, http.StatusAccepted, response.Fields{
		"message":   "Model retraining started",
		"job_id":    job.ID,
		"job":       job,
		"stages":    h.service.StageNames(),
		"timestamp": job.StartedAt,
	})
}

// HandleInfo handles GET /api/retrain
func (h *Handler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status()
	if err != nil {
		h.rw.Fail(w, err)
		return
	}
	h.rw.OK(w, http.StatusOK, response.Fields{"info": status})
}

// HandleListJobs handles GET /api/retrain/jobs
func (h *Handler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	h.rw.OK(w, http.StatusOK, response.Fields{"jobs": h.service.History()})
}

// HandleGetJob handles GET /api/retrain/jobs/{id}
func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Job(chi.URLParam(r, "id"))
	if errors.Is(err, jobs.ErrJobNotFound) {
		h.rw.Fail(w, response.NewError(response.KindNotFound, "Job not found"))
		return
	}
	if err != nil {
		h.rw.Fail(w, err)
		return
	}
	h.rw.OK(w, http.StatusOK, response.Fields{"job": job})
}
