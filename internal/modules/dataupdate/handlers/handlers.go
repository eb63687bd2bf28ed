// Package handlers provides HTTP handlers for the data refresh pipeline.
package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pyethone/betbridge/internal/jobs"
	"github.com/pyethone/betbridge/internal/modules/dataupdate"
	"github.com/pyethone/betbridge/internal/response"
)

// Handler handles data update HTTP requests
type Handler struct {
	service *dataupdate.Service
	rw      response.Writer
	log     zerolog.Logger
}

// NewHandler creates a new data update handler
func NewHandler(service *dataupdate.Service, log zerolog.Logger) *Handler {
	l := log.With().Str("handler", "dataupdate").Logger()
	return &Handler{
		service: service,
		rw:      response.NewWriter(l),
		log:     l,
	}
}

// HandleTrigger handles POST /api/update-data
func (h *Handler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Trigger()
	if errors.Is(err, jobs.ErrAlreadyRunning) {
		details := response.Fields{}
		if running, ok := h.service.Running(); ok {
			details["job_id"] = running.ID
		}
		h.rw.Fail(w, response.NewError(response.KindConflict, "Data update is already in progress").
			WithDetails(details).Wrap(err))
		return
	}
	if err != nil {
		h.rw.Fail(w, response.NewError(response.KindEngineFailed, "Data update could not be started").Wrap(err))
		return
	}

	// The scraper may not have opened its log yet; this reports the previous run's log then.
	logFile, err := h.service.LatestLogFile()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to find data update log")
	}
	fields := response.Fields{
		"message":    "Data update started",
		"job_id":     job.ID,
		"job":        job,
		"log_file":   nil,
		"started_at": job.StartedAt,
	}
	if logFile != "" {
		fields["log_file"] = logFile
	}

	h.log.Info().Str("job_id", job.ID).Msg("Data update triggered")
	h.rw.OK(w, http.StatusAccepted, fields)
}

// HandleInfo handles GET /api/update-data
func (h *Handler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status()
	if err != nil {
		h.rw.Fail(w, err)
		return
	}
	h.rw.OK(w, http.StatusOK, response.Fields{"info": status})
}

// HandleListJobs handles GET /api/update-data/jobs
func (h *Handler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	h.rw.OK(w, http.StatusOK, response.Fields{"jobs": h.service.History()})
}

// HandleGetJob handles GET /api/update-data/jobs/{id}
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
