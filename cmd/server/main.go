// Package main is the entry point for betbridge, the HTTP front for the football
// prediction engines. It serves predictions, analytics over saved predictions,
// and background retraining and data refresh pipelines.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pyethone/betbridge/internal/config"
	"github.com/pyethone/betbridge/internal/di"
	"github.com/pyethone/betbridge/internal/scheduler"
	"github.com/pyethone/betbridge/internal/server"
	"github.com/pyethone/betbridge/pkg/logger"
)

// main orchestrates startup:
// 1. Loads configuration from environment variables (.env supported)
// 2. Initializes logging
// 3. Wires dependencies (database, engine bridge, services, scheduled jobs)
// 4. Starts the HTTP server and the scheduler
// 5. Waits for a shutdown signal and shuts down gracefully
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting betbridge")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(log)

	container, err := di.Wire(ctx, cfg, nil, sched, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
		Scheduler: sched,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop scheduling before the coordinator kills running pipeline stages
	sched.Stop()

	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close database")
	}

	log.Info().Msg("Server stopped")
}
