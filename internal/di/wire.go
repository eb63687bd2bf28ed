package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pyethone/betbridge/internal/config"
	"github.com/pyethone/betbridge/internal/engine"
	"github.com/pyethone/betbridge/internal/scheduler"
)

// Wire initializes all dependencies and returns a fully configured container.
// Order of operations:
// 1. Initialize databases
// 2. Initialize services (engine bridge, repositories, pipelines, backups)
// 3. Register scheduled jobs
//
// runner overrides the engine bridge when non-nil.
func Wire(ctx context.Context, cfg *config.Config, runner engine.Runner, sched *scheduler.Scheduler, log zerolog.Logger) (*Container, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}
	container.Runner = runner

	if err := InitializeServices(ctx, container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := RegisterJobs(container, cfg, sched, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")
	return container, nil
}
