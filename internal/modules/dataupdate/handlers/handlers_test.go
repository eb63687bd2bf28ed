package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyethone/betbridge/internal/config"
	"github.com/pyethone/betbridge/internal/engine"
	"github.com/pyethone/betbridge/internal/jobs"
	"github.com/pyethone/betbridge/internal/modules/dataupdate"
	testingpkg "github.com/pyethone/betbridge/internal/testing"
)

func setup(t *testing.T, runner engine.Runner, logDir string) (*chi.Mux, *jobs.Coordinator) {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	coordinator := jobs.NewCoordinator(runner, 0, logger)
	t.Cleanup(coordinator.Close)

	cfg := config.EngineConfig{
		PythonBin:    "/usr/bin/python3",
		UpdateShell:  "bash",
		UpdateScript: "update_data.sh",
		MatchScript:  "match_results.py",
		StageTimeout: time.Minute,
	}
	service, err := dataupdate.NewService(coordinator, cfg, logDir, logger)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Route("/api", NewHandler(service, logger).RegisterRoutes)
	return router, coordinator
}

func send(t *testing.T, router http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	return w, envelope
}

func TestHandleTrigger(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data_update_20250314.log"), []byte("ok"), 0o644))
	router, coordinator := setup(t, testingpkg.NewMockRunner(nil), dir)

	w, resp := send(t, router, http.MethodPost, "/api/update-data")
	coordinator.Wait()

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "Data update started", resp["message"])
	assert.Equal(t, "data_update_20250314.log", resp["log_file"])
	assert.NotEmpty(t, resp["job_id"])
	assert.NotEmpty(t, resp["started_at"])
}

func TestHandleTrigger_NoLogYet(t *testing.T) {
	router, coordinator := setup(t, testingpkg.NewMockRunner(nil), t.TempDir())

	w, resp := send(t, router, http.MethodPost, "/api/update-data")
	coordinator.Wait()

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, resp, "log_file")
	assert.Nil(t, resp["log_file"])
}

func TestHandleTrigger_AlreadyRunning(t *testing.T) {
	runner := testingpkg.NewMockRunner(nil)
	release := runner.Block()
	router, coordinator := setup(t, runner, "")

	_, first := send(t, router, http.MethodPost, "/api/update-data")
	w, resp := send(t, router, http.MethodPost, "/api/update-data")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Data update is already in progress", resp["error"])
	assert.Equal(t, first["job_id"], resp["details"].(map[string]interface{})["job_id"])

	release()
	coordinator.Wait()
}

func TestHandleInfo(t *testing.T) {
	runner := testingpkg.NewMockRunner(nil)
	runner.SetResult("result_matching", &engine.Result{ExitCode: 1, Output: "no results file"})
	router, coordinator := setup(t, runner, "")

	w, resp := send(t, router, http.MethodGet, "/api/update-data")
	assert.Equal(t, http.StatusOK, w.Code)
	info := resp["info"].(map[string]interface{})
	assert.Equal(t, "idle", info["state"])
	assert.Nil(t, info["job"])

	send(t, router, http.MethodPost, "/api/update-data")
	coordinator.Wait()

	_, resp = send(t, router, http.MethodGet, "/api/update-data")
	info = resp["info"].(map[string]interface{})
	assert.Equal(t, "failed", info["state"])
	job := info["job"].(map[string]interface{})
	assert.Equal(t, "result_matching", job["failed_stage"])
	assert.Equal(t, "Result matching failed: no results file", job["error"])
}

func TestHandleGetJob(t *testing.T) {
	router, coordinator := setup(t, testingpkg.NewMockRunner(nil), "")

	_, started := send(t, router, http.MethodPost, "/api/update-data")
	coordinator.Wait()

	w, resp := send(t, router, http.MethodGet, "/api/update-data/jobs/"+started["job_id"].(string))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "succeeded", resp["job"].(map[string]interface{})["state"])

	w, _ = send(t, router, http.MethodGet, "/api/update-data/jobs/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleListJobs(t *testing.T) {
	runner := testingpkg.NewMockRunner(nil)
	runner.SetResult("data_scrape", &engine.Result{ExitCode: 1, Output: "scraper crashed"})
	router, coordinator := setup(t, runner, "")

	_, started := send(t, router, http.MethodPost, "/api/update-data")
	coordinator.Wait()

	w, resp := send(t, router, http.MethodGet, "/api/update-data/jobs")
	assert.Equal(t, http.StatusOK, w.Code)
	list := resp["jobs"].([]interface{})
	require.Len(t, list, 1)
	job := list[0].(map[string]interface{})
	assert.Equal(t, started["job_id"], job["id"])
	assert.Equal(t, "failed", job["state"])
	assert.Equal(t, "data_scrape", job["failed_stage"])
}
