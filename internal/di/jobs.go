package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pyethone/betbridge/internal/config"
	"github.com/pyethone/betbridge/internal/scheduler"
)

type scheduledJob struct {
	schedule string
	job      scheduler.Job
}

// RegisterJobs adds the scheduled jobs. Jobs with an empty schedule are left
// to manual triggering.
func RegisterJobs(container *Container, cfg *config.Config, sched *scheduler.Scheduler, log zerolog.Logger) error {
	entries := []scheduledJob{
		{cfg.UpdateSchedule, container.DataUpdateService},
		{cfg.MaintenanceSchedule, container.MaintenanceJob},
	}
	if container.BackupService != nil {
		entries = append(entries, scheduledJob{cfg.BackupSchedule, container.BackupService})
	}

	for _, e := range entries {
		if e.schedule == "" {
			log.Debug().Str("job", e.job.Name()).Msg("No schedule, job runs on demand only")
			continue
		}
		if err := sched.AddJob(e.schedule, e.job); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", e.job.Name(), err)
		}
	}
	return nil
}
