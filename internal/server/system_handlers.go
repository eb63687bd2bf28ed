package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/pyethone/betbridge/internal/database"
	"github.com/pyethone/betbridge/internal/jobs"
	"github.com/pyethone/betbridge/internal/reliability"
	"github.com/pyethone/betbridge/internal/response"
	"github.com/pyethone/betbridge/internal/scheduler"
)

// SystemHandlers serves host, database and pipeline status plus backup operations
type SystemHandlers struct {
	db          *database.DB
	coordinator *jobs.Coordinator
	backups     *reliability.BackupService
	scheduler   *scheduler.Scheduler
	maintenance scheduler.Job
	startedAt   time.Time
	rw          response.Writer
	log         zerolog.Logger

	cpuPercent    func(ctx context.Context, interval time.Duration, perCPU bool) ([]float64, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// NewSystemHandlers creates system handlers. backups may be nil.
func NewSystemHandlers(
	db *database.DB,
	coordinator *jobs.Coordinator,
	backups *reliability.BackupService,
	sched *scheduler.Scheduler,
	maintenance *reliability.MaintenanceJob,
	log zerolog.Logger,
) *SystemHandlers {
	l := log.With().Str("handler", "system").Logger()
	h := &SystemHandlers{
		db:            db,
		coordinator:   coordinator,
		backups:       backups,
		scheduler:     sched,
		startedAt:     time.Now(),
		rw:            response.NewWriter(l),
		log:           l,
		cpuPercent:    cpu.PercentWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
	}
	if maintenance != nil {
		h.maintenance = maintenance
	}
	return h
}

// SystemStatus is the body of GET /api/system/status
type SystemStatus struct {
	CPUPercent     float64               `json:"cpu_percent"`
	MemoryPercent  float64               `json:"memory_percent"`
	UptimeSeconds  int64                 `json:"uptime_seconds"`
	Database       *database.Stats       `json:"database"`
	Jobs           map[string]jobs.State `json:"jobs"`
	BackupsEnabled bool                  `json:"backups_enabled"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats(r.Context())

	stats, err := h.db.GetStats(r.Context())
	if err != nil {
		h.rw.Fail(w, response.Datastore(err))
		return
	}

	h.rw.OK(w, http.StatusOK, response.Fields{"status": SystemStatus{
		CPUPercent:     cpuPercent,
		MemoryPercent:  memPercent,
		UptimeSeconds:  int64(time.Since(h.startedAt).Seconds()),
		Database:       stats,
		Jobs:           h.coordinator.States(),
		BackupsEnabled: h.backups != nil,
	}})
}

// getSystemStats samples CPU over 100ms so the endpoint stays fast
func (h *SystemHandlers) getSystemStats(ctx context.Context) (float64, float64) {
	cpuAvg := 0.0
	if percents, err := h.cpuPercent(ctx, 100*time.Millisecond, false); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(percents) > 0 {
		cpuAvg = percents[0]
	}

	memStat, err := h.virtualMemory(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuAvg, 0
	}
	return cpuAvg, memStat.UsedPercent
}

// HandleListBackups handles GET /api/system/backups
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		h.rw.Fail(w, response.NewError(response.KindNotFound, "Backups are not configured"))
		return
	}
	backups, err := h.backups.ListBackups(r.Context())
	if err != nil {
		h.rw.Fail(w, response.NewError(response.KindDatastoreError, "Failed to list backups").Wrap(err))
		return
	}
	h.rw.OK(w, http.StatusOK, response.Fields{"backups": backups})
}

// HandleCreateBackup handles POST /api/system/backups
func (h *SystemHandlers) HandleCreateBackup(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		h.rw.Fail(w, response.NewError(response.KindNotFound, "Backups are not configured"))
		return
	}
	backup, err := h.backups.Snapshot(r.Context())
	if err != nil {
		h.rw.Fail(w, response.NewError(response.KindDatastoreError, "Backup failed").Wrap(err))
		return
	}
	h.rw.OK(w, http.StatusOK, response.Fields{"message": "Backup created", "backup": backup})
}

// HandleTriggerMaintenance runs the database maintenance job immediately
// POST /api/system/maintenance
func (h *SystemHandlers) HandleTriggerMaintenance(w http.ResponseWriter, r *http.Request) {
	if h.maintenance == nil {
		h.rw.Fail(w, response.NewError(response.KindNotFound, "Maintenance job not registered"))
		return
	}

	h.log.Info().Msg("Manual database maintenance triggered")

	if err := h.scheduler.RunNow(h.maintenance); err != nil {
		h.rw.Fail(w, response.NewError(response.KindDatastoreError, "Maintenance failed: "+err.Error()).Wrap(err))
		return
	}
	h.rw.OK(w, http.StatusOK, response.Fields{"message": "Maintenance completed"})
}
