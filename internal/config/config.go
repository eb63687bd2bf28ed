// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration. It is resolved once at process start
// and passed to every component explicitly.
type Config struct {
	DataDir      string // Base directory for the analytics database and logs (always absolute)
	DatabasePath string
	LogLevel     string
	Port         int
	DevMode      bool

	Engines EngineConfig

	TeamsFile        string // CSV with name,short_name header; empty = built-in registry
	RetrainLogFile   string
	DataUpdateLogDir string

	PredictRateLimit    int    // Requests per minute per client IP on POST /api/predict (0 = unlimited)
	UpdateSchedule      string // Cron expression for the data refresh pipeline (empty = manual only)
	BackupSchedule      string // Cron expression for analytics backups (empty = manual only)
	MaintenanceSchedule string // Cron expression for integrity checks and WAL truncation (empty = off)

	Backup *BackupConfig
}

// EngineConfig holds the external engine locations and limits
type EngineConfig struct {
	PythonBin     string
	WorkDir       string // Working directory for engine processes
	PredictScript string
	SaveScript    string // Empty = save predictions natively through the analytics store
	FeatureScript string
	TrainScript   string
	UpdateShell   string
	UpdateScript  string
	MatchScript   string

	PredictTimeout time.Duration
	SaveTimeout    time.Duration
	StageTimeout   time.Duration // Per pipeline stage (retraining, data refresh)
	MaxOutputBytes int64
}

// BackupConfig holds S3-compatible (Cloudflare R2, MinIO, AWS) backup settings
type BackupConfig struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	RetentionDays   int // Older backups are rotated out; the newest three are always kept (0 = keep all)
}

// Enabled reports whether backups have somewhere to go
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("BETBRIDGE_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	engineDir, err := filepath.Abs(getEnv("ENGINE_DIR", "./python_api"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve engine directory path: %w", err)
	}

	cfg := &Config{
		DataDir:      absDataDir,
		DatabasePath: getEnv("DATABASE_PATH", filepath.Join(absDataDir, "predictions.db")),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Port:         getEnvAsInt("BETBRIDGE_PORT", 8080),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		Engines: EngineConfig{
			PythonBin:      getEnv("PYTHON_BIN", "python3"),
			WorkDir:        engineDir,
			PredictScript:  getEnv("PREDICT_SCRIPT", filepath.Join(engineDir, "predict.py")),
			SaveScript:     os.Getenv("SAVE_SCRIPT"),
			FeatureScript:  getEnv("FEATURE_SCRIPT", filepath.Join(engineDir, "feature_engineering.py")),
			TrainScript:    getEnv("TRAIN_SCRIPT", filepath.Join(engineDir, "train_models.py")),
			UpdateShell:    getEnv("UPDATE_SHELL", "bash"),
			UpdateScript:   getEnv("UPDATE_SCRIPT", filepath.Join(engineDir, "update_data.sh")),
			MatchScript:    getEnv("MATCH_SCRIPT", filepath.Join(engineDir, "match_results.py")),
			PredictTimeout: getEnvAsDuration("PREDICT_TIMEOUT", 30*time.Second),
			SaveTimeout:    getEnvAsDuration("SAVE_TIMEOUT", 30*time.Second),
			StageTimeout:   getEnvAsDuration("STAGE_TIMEOUT", 10*time.Minute),
			MaxOutputBytes: int64(getEnvAsInt("ENGINE_MAX_OUTPUT_BYTES", 4<<20)),
		},
		TeamsFile:           os.Getenv("TEAMS_FILE"),
		RetrainLogFile:      getEnv("RETRAIN_LOG_FILE", filepath.Join(absDataDir, "logs", "retraining.log")),
		DataUpdateLogDir:    getEnv("DATA_UPDATE_LOG_DIR", filepath.Join(absDataDir, "logs")),
		PredictRateLimit:    getEnvAsInt("PREDICT_RATE_LIMIT", 30),
		UpdateSchedule:      os.Getenv("UPDATE_SCHEDULE"),
		BackupSchedule:      getEnv("BACKUP_SCHEDULE", "0 30 3 * * *"),
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 0 4 * * *"),
		Backup: &BackupConfig{
			Bucket:          os.Getenv("BACKUP_S3_BUCKET"),
			Endpoint:        os.Getenv("BACKUP_S3_ENDPOINT"),
			Region:          getEnv("BACKUP_S3_REGION", "auto"),
			AccessKeyID:     os.Getenv("BACKUP_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("BACKUP_S3_SECRET_ACCESS_KEY"),
			Prefix:          getEnv("BACKUP_S3_PREFIX", "betbridge"),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	var errs []error

	if c.Engines.PythonBin == "" {
		errs = append(errs, errors.New("PYTHON_BIN is required"))
	}
	if c.Engines.PredictScript == "" {
		errs = append(errs, errors.New("PREDICT_SCRIPT is required"))
	}
	if c.Engines.PredictTimeout <= 0 || c.Engines.SaveTimeout <= 0 || c.Engines.StageTimeout <= 0 {
		errs = append(errs, errors.New("engine timeouts must be positive"))
	}
	if c.Engines.MaxOutputBytes <= 0 {
		errs = append(errs, errors.New("ENGINE_MAX_OUTPUT_BYTES must be positive"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Port))
	}
	if c.Backup.Enabled() && (c.Backup.AccessKeyID == "") != (c.Backup.SecretAccessKey == "") {
		errs = append(errs, errors.New("backup access key id and secret must be set together"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s", "10m") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
