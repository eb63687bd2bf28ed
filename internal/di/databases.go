package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pyethone/betbridge/internal/config"
	"github.com/pyethone/betbridge/internal/database"
)

// InitializeDatabases opens the analytics store and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// predictions.db - prediction history and results; cannot be regenerated
	predictionsDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath,
		Profile: database.ProfileDurable,
		Name:    "predictions",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize predictions database: %w", err)
	}
	if err := predictionsDB.Migrate(); err != nil {
		predictionsDB.Close()
		return nil, fmt.Errorf("failed to migrate predictions database: %w", err)
	}
	container.PredictionsDB = predictionsDB

	log.Info().Str("path", predictionsDB.Path()).Msg("Predictions database ready")
	return container, nil
}
