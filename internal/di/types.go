// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/pyethone/betbridge/internal/database"
	"github.com/pyethone/betbridge/internal/engine"
	"github.com/pyethone/betbridge/internal/jobs"
	"github.com/pyethone/betbridge/internal/modules/analytics"
	"github.com/pyethone/betbridge/internal/modules/dataupdate"
	"github.com/pyethone/betbridge/internal/modules/predictions"
	"github.com/pyethone/betbridge/internal/modules/retraining"
	"github.com/pyethone/betbridge/internal/modules/teams"
	"github.com/pyethone/betbridge/internal/reliability"
)

// Container holds all application dependencies. It is created by Wire and
// handed to the server and scheduler.
type Container struct {
	// Databases
	PredictionsDB *database.DB

	// Engines
	Runner engine.Runner

	// Repositories
	AnalyticsRepo *analytics.Repository
	Teams         *teams.Registry

	// Services
	Coordinator       *jobs.Coordinator
	PredictionService *predictions.Service
	RetrainingService *retraining.Service
	DataUpdateService *dataupdate.Service
	BackupService     *reliability.BackupService // nil when backups are not configured
	MaintenanceJob    *reliability.MaintenanceJob
}

// Close stops background jobs and closes the database
func (c *Container) Close() error {
	if c.Coordinator != nil {
		c.Coordinator.Close()
	}
	if c.PredictionsDB != nil {
		return c.PredictionsDB.Close()
	}
	return nil
}
