package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyethone/betbridge/internal/config"
	"github.com/pyethone/betbridge/internal/di"
	"github.com/pyethone/betbridge/internal/engine"
	"github.com/pyethone/betbridge/internal/reliability"
	"github.com/pyethone/betbridge/internal/scheduler"
	testingpkg "github.com/pyethone/betbridge/internal/testing"
)

func setupServer(t *testing.T, runner engine.Runner) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		DataDir:      dir,
		DatabasePath: filepath.Join(dir, "predictions.db"),
		Port:         8080,
		DevMode:      true,
		Engines: config.EngineConfig{
			PythonBin:      "python3",
			PredictScript:  "predict.py",
			FeatureScript:  "feature_engineering.py",
			TrainScript:    "train_models.py",
			UpdateShell:    "bash",
			UpdateScript:   "update_data.sh",
			PredictTimeout: time.Second,
			SaveTimeout:    time.Second,
			StageTimeout:   time.Second,
			MaxOutputBytes: 1 << 20,
		},
		RetrainLogFile:   filepath.Join(dir, "logs", "retraining.log"),
		DataUpdateLogDir: filepath.Join(dir, "logs"),
		Backup:           &config.BackupConfig{},
	}
	log := zerolog.Nop()

	sched := scheduler.New(log)
	container, err := di.Wire(context.Background(), cfg, runner, sched, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	s := New(Config{Log: log, Config: cfg, Container: container, Scheduler: sched})
	s.systemHandlers.cpuPercent = func(ctx context.Context, interval time.Duration, perCPU bool) ([]float64, error) {
		return []float64{12.5}, nil
	}
	s.systemHandlers.virtualMemory = func(ctx context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{UsedPercent: 40}, nil
	}
	return s
}

func request(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	return w, decoded
}

func TestHealth(t *testing.T) {
	s := setupServer(t, testingpkg.NewMockRunner(nil))

	w, body := request(t, s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	s := setupServer(t, testingpkg.NewMockRunner(nil))

	w, body := request(t, s, http.MethodGet, "/api/nope", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "not_found", body["code"])
}

func TestWrongMethodUsesEnvelope(t *testing.T) {
	s := setupServer(t, testingpkg.NewMockRunner(nil))

	w, body := request(t, s, http.MethodDelete, "/api/predict", "")

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "Method not allowed", body["error"])
}

func TestPredictEndToEnd(t *testing.T) {
	runner := testingpkg.NewMockRunner(&engine.Result{Output: testingpkg.SamplePredictionPayload})
	s := setupServer(t, runner)

	w, body := request(t, s, http.MethodPost, "/api/predict", `{"home_team": "Arsenal", "away_team": "Chelsea"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Arsenal", body["data"].(map[string]interface{})["home_team"])
	assert.Len(t, runner.Invocations(), 1)
}

func TestCORSPreflight(t *testing.T) {
	s := setupServer(t, testingpkg.NewMockRunner(nil))

	req := httptest.NewRequest(http.MethodOptions, "/api/predict", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSystemStatus(t *testing.T) {
	s := setupServer(t, testingpkg.NewMockRunner(nil))

	w, body := request(t, s, http.MethodGet, "/api/system/status", "")

	assert.Equal(t, http.StatusOK, w.Code)
	status := body["status"].(map[string]interface{})
	assert.Equal(t, 12.5, status["cpu_percent"])
	assert.Equal(t, 40.0, status["memory_percent"])
	assert.Equal(t, false, status["backups_enabled"])
	assert.Equal(t, map[string]interface{}{"retrain": "idle", "update_data": "idle"}, status["jobs"])
	assert.Positive(t, status["database"].(map[string]interface{})["page_count"])
}

func TestSystemStatus_HostStatsUnavailable(t *testing.T) {
	s := setupServer(t, testingpkg.NewMockRunner(nil))
	s.systemHandlers.cpuPercent = func(ctx context.Context, interval time.Duration, perCPU bool) ([]float64, error) {
		return nil, errors.New("not supported")
	}

	w, body := request(t, s, http.MethodGet, "/api/system/status", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, body["status"].(map[string]interface{})["cpu_percent"])
}

type stubJob struct {
	runs int
	err  error
}

func (j *stubJob) Run() error {
	j.runs++
	return j.err
}

func (j *stubJob) Name() string {
	return "database_maintenance"
}

func TestTriggerMaintenance(t *testing.T) {
	s := setupServer(t, testingpkg.NewMockRunner(nil))
	job := &stubJob{}
	s.systemHandlers.maintenance = job

	w, body := request(t, s, http.MethodPost, "/api/system/maintenance", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Maintenance completed", body["message"])
	assert.Equal(t, 1, job.runs)

	job.err = errors.New("database integrity check failed")
	w, body = request(t, s, http.MethodPost, "/api/system/maintenance", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Maintenance failed: database integrity check failed", body["error"])
	assert.Equal(t, 2, job.runs)
}

func TestBackups_Disabled(t *testing.T) {
	s := setupServer(t, testingpkg.NewMockRunner(nil))

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		w, body := request(t, s, method, "/api/system/backups", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Backups are not configured", body["error"])
	}
}

type discardStore struct {
	keys []string
}

func (d *discardStore) Upload(ctx context.Context, key string, body io.Reader) error {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return err
	}
	d.keys = append(d.keys, key)
	return nil
}

func (d *discardStore) List(ctx context.Context, prefix string) ([]reliability.Object, error) {
	out := make([]reliability.Object, 0, len(d.keys))
	for _, k := range d.keys {
		out = append(out, reliability.Object{Key: k, Size: 1})
	}
	return out, nil
}

func (d *discardStore) Delete(ctx context.Context, key string) error {
	return nil
}

func TestBackups_CreateAndList(t *testing.T) {
	s := setupServer(t, testingpkg.NewMockRunner(nil))
	store := &discardStore{}
	s.systemHandlers.backups = reliability.NewBackupService(
		s.container.PredictionsDB, store, "betbridge", s.cfg.DataDir, 30, zerolog.Nop(),
	)

	w, body := request(t, s, http.MethodPost, "/api/system/backups", "")
	require.Equal(t, http.StatusOK, w.Code, body)
	key := body["backup"].(map[string]interface{})["key"].(string)
	assert.True(t, strings.HasPrefix(key, "betbridge/predictions-"))

	w, body = request(t, s, http.MethodGet, "/api/system/backups", "")
	assert.Equal(t, http.StatusOK, w.Code)
	backups := body["backups"].([]interface{})
	require.Len(t, backups, 1)
	assert.Equal(t, key, backups[0].(map[string]interface{})["key"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupServer(t, testingpkg.NewMockRunner(nil))
	request(t, s, http.MethodGet, "/health", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `betbridge_api_requests_total{method="GET",route="/health",status="200"}`)
}
