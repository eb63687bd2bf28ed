package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/pyethone/betbridge/internal/database"
)

const (
	// criticalFreeBytes fails the maintenance run
	criticalFreeBytes = 500 << 20
	// lowFreeBytes is logged as a warning
	lowFreeBytes = 5 << 30

	maintenanceTimeout = 10 * time.Minute
)

// MaintenanceJob checks the analytics store's integrity, truncates its WAL and
// watches the free space on the data volume.
type MaintenanceJob struct {
	db      *database.DB
	dataDir string
	usage   func(ctx context.Context, path string) (*disk.UsageStat, error)
	log     zerolog.Logger
}

// NewMaintenanceJob creates a maintenance job for db
func NewMaintenanceJob(db *database.DB, dataDir string, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:      db,
		dataDir: dataDir,
		usage:   disk.UsageWithContext,
		log:     log.With().Str("job", "database_maintenance").Logger(),
	}
}

// Name implements scheduler.Job
func (j *MaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run implements scheduler.Job
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()
	start := time.Now()

	// Corruption cannot be repaired here
	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().Err(err).Str("database", j.db.Name()).Msg("Database integrity check failed")
		return fmt.Errorf("database %s is corrupted: %w", j.db.Name(), err)
	}

	var busy, frames, checkpointed int
	err := j.db.Conn().QueryRowContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &frames, &checkpointed)
	if err != nil {
		j.log.Warn().Err(err).Str("database", j.db.Name()).Msg("WAL checkpoint failed")
	} else {
		j.log.Debug().
			Str("database", j.db.Name()).
			Int("busy", busy).
			Int("wal_frames", frames).
			Int("checkpointed", checkpointed).
			Msg("WAL checkpoint completed")
	}

	if err := j.checkDiskSpace(ctx); err != nil {
		return err
	}

	j.log.Info().Dur("duration", time.Since(start)).Msg("Database maintenance completed")
	return nil
}

func (j *MaintenanceJob) checkDiskSpace(ctx context.Context) error {
	usage, err := j.usage(ctx, j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	freeGB := float64(usage.Free) / 1e9
	switch {
	case usage.Free < criticalFreeBytes:
		j.log.Error().Float64("available_gb", freeGB).Msg("Insufficient disk space")
		return fmt.Errorf("only %.2f GB free on %s", freeGB, j.dataDir)
	case usage.Free < lowFreeBytes:
		j.log.Warn().Float64("available_gb", freeGB).Float64("used_percent", usage.UsedPercent).Msg("Disk space running low")
	default:
		j.log.Debug().Float64("available_gb", freeGB).Msg("Disk space check")
	}
	return nil
}
