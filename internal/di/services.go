package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pyethone/betbridge/internal/config"
	"github.com/pyethone/betbridge/internal/engine"
	"github.com/pyethone/betbridge/internal/jobs"
	"github.com/pyethone/betbridge/internal/modules/analytics"
	"github.com/pyethone/betbridge/internal/modules/dataupdate"
	"github.com/pyethone/betbridge/internal/modules/predictions"
	"github.com/pyethone/betbridge/internal/modules/retraining"
	"github.com/pyethone/betbridge/internal/modules/teams"
	"github.com/pyethone/betbridge/internal/reliability"
)

// InitializeServices creates the engine bridge, repositories and services.
// The runner may be replaced before this runs (tests use a mock).
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container.Runner == nil {
		container.Runner = engine.NewBridge(cfg.Engines.MaxOutputBytes, log)
	}

	registry, err := teams.Load(cfg.TeamsFile)
	if err != nil {
		return fmt.Errorf("failed to load teams: %w", err)
	}
	container.Teams = registry
	log.Info().Int("teams", registry.Len()).Msg("Team registry loaded")

	container.AnalyticsRepo = analytics.NewRepository(container.PredictionsDB.Conn(), log)
	container.PredictionService = predictions.NewService(
		container.Runner,
		container.Teams,
		container.AnalyticsRepo,
		cfg.Engines,
		log,
	)

	container.Coordinator = jobs.NewCoordinator(container.Runner, jobs.DefaultHistorySize, log)

	retrainingService, err := retraining.NewService(
		container.Coordinator,
		cfg.Engines,
		retraining.NewActivityLog(cfg.RetrainLogFile),
		log,
	)
	if err != nil {
		return err
	}
	container.RetrainingService = retrainingService

	dataUpdateService, err := dataupdate.NewService(container.Coordinator, cfg.Engines, cfg.DataUpdateLogDir, log)
	if err != nil {
		return err
	}
	container.DataUpdateService = dataUpdateService

	container.MaintenanceJob = reliability.NewMaintenanceJob(container.PredictionsDB, cfg.DataDir, log)

	if cfg.Backup.Enabled() {
		client, err := reliability.NewS3Client(ctx, cfg.Backup)
		if err != nil {
			return fmt.Errorf("failed to create backup client: %w", err)
		}
		container.BackupService = reliability.NewBackupService(
			container.PredictionsDB,
			client,
			cfg.Backup.Prefix,
			cfg.DataDir,
			cfg.Backup.RetentionDays,
			log,
		)
	} else {
		log.Info().Msg("Backups disabled (no bucket configured)")
	}

	return nil
}
