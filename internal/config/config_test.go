package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("BETBRIDGE_DATA_DIR", dataDir)
	t.Setenv("ENGINE_DIR", "/opt/engines")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dataDir, "predictions.db"), cfg.DatabasePath)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "python3", cfg.Engines.PythonBin)
	assert.Equal(t, "/opt/engines/predict.py", cfg.Engines.PredictScript)
	assert.Equal(t, "/opt/engines/train_models.py", cfg.Engines.TrainScript)
	assert.Empty(t, cfg.Engines.SaveScript, "save defaults to the native store")
	assert.Equal(t, 30*time.Second, cfg.Engines.PredictTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Engines.StageTimeout)
	assert.Equal(t, filepath.Join(dataDir, "logs", "retraining.log"), cfg.RetrainLogFile)
	assert.False(t, cfg.Backup.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BETBRIDGE_DATA_DIR", t.TempDir())
	t.Setenv("BETBRIDGE_PORT", "9090")
	t.Setenv("PYTHON_BIN", "/venv/bin/python")
	t.Setenv("PREDICT_TIMEOUT", "5s")
	t.Setenv("STAGE_TIMEOUT", "120")
	t.Setenv("SAVE_SCRIPT", "/srv/save_prediction_to_db.py")
	t.Setenv("BACKUP_S3_BUCKET", "backups")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "/venv/bin/python", cfg.Engines.PythonBin)
	assert.Equal(t, 5*time.Second, cfg.Engines.PredictTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Engines.StageTimeout)
	assert.Equal(t, "/srv/save_prediction_to_db.py", cfg.Engines.SaveScript)
	assert.True(t, cfg.Backup.Enabled())
}

func TestGetEnvAsDuration_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_TIMEOUT", "soon")
	assert.Equal(t, 3*time.Second, getEnvAsDuration("SOME_TIMEOUT", 3*time.Second))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port: 8080,
			Engines: EngineConfig{
				PythonBin:      "python3",
				PredictScript:  "predict.py",
				PredictTimeout: time.Second,
				SaveTimeout:    time.Second,
				StageTimeout:   time.Second,
				MaxOutputBytes: 1024,
			},
			Backup: &BackupConfig{},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing interpreter", mutate: func(c *Config) { c.Engines.PythonBin = "" }, wantErr: "PYTHON_BIN"},
		{name: "missing predict script", mutate: func(c *Config) { c.Engines.PredictScript = "" }, wantErr: "PREDICT_SCRIPT"},
		{name: "zero timeout", mutate: func(c *Config) { c.Engines.StageTimeout = 0 }, wantErr: "timeouts"},
		{name: "bad port", mutate: func(c *Config) { c.Port = 70000 }, wantErr: "invalid port"},
		{
			name: "half backup credentials",
			mutate: func(c *Config) {
				c.Backup.Bucket = "b"
				c.Backup.AccessKeyID = "key"
			},
			wantErr: "set together",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
