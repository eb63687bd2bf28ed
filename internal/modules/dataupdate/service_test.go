package dataupdate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyethone/betbridge/internal/config"
	"github.com/pyethone/betbridge/internal/engine"
	"github.com/pyethone/betbridge/internal/jobs"
	testingpkg "github.com/pyethone/betbridge/internal/testing"
)

func engineConfig() config.EngineConfig {
	return config.EngineConfig{
		PythonBin:    "/usr/bin/python3",
		WorkDir:      "/opt/engine",
		UpdateShell:  "bash",
		UpdateScript: "/opt/engine/update_data.sh",
		MatchScript:  "/opt/engine/match_results.py",
		StageTimeout: 5 * time.Minute,
	}
}

func newService(t *testing.T, runner engine.Runner, logDir string) (*Service, *jobs.Coordinator) {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	coordinator := jobs.NewCoordinator(runner, 0, logger)
	t.Cleanup(coordinator.Close)
	svc, err := NewService(coordinator, engineConfig(), logDir, logger)
	require.NoError(t, err)
	return svc, coordinator
}

func TestPipeline(t *testing.T) {
	p := Pipeline(engineConfig())

	require.Len(t, p.Stages, 2)
	assert.Equal(t, "data_scrape", p.Stages[0].Name)
	assert.Equal(t, "bash", p.Stages[0].Invocation.Executable)
	assert.Equal(t, []string{"/opt/engine/update_data.sh"}, p.Stages[0].Invocation.Argv())
	assert.Equal(t, "result_matching", p.Stages[1].Name)
	assert.Equal(t, "/usr/bin/python3", p.Stages[1].Invocation.Executable)
}

func TestPipeline_WithoutMatcher(t *testing.T) {
	cfg := engineConfig()
	cfg.MatchScript = ""

	p := Pipeline(cfg)

	require.Len(t, p.Stages, 1)
	assert.Equal(t, "data_scrape", p.Stages[0].Name)
}

func TestTrigger_RunsBothStages(t *testing.T) {
	runner := testingpkg.NewMockRunner(nil)
	svc, coordinator := newService(t, runner, "")

	job, err := svc.Trigger()
	require.NoError(t, err)
	coordinator.Wait()

	got, err := svc.Job(job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateSucceeded, got.State)
	invocations := runner.Invocations()
	require.Len(t, invocations, 2)
	assert.Equal(t, "data_scrape", invocations[0].Name)
	assert.Equal(t, "result_matching", invocations[1].Name)
}

func TestTrigger_ScrapeFailureSkipsMatching(t *testing.T) {
	runner := testingpkg.NewMockRunner(nil)
	runner.SetResult("data_scrape", &engine.Result{ExitCode: 1, Output: "HTTP 503"})
	svc, coordinator := newService(t, runner, "")

	_, err := svc.Trigger()
	require.NoError(t, err)
	coordinator.Wait()

	status, err := svc.Status()
	require.NoError(t, err)
	assert.Equal(t, jobs.StateFailed, status.State)
	assert.Equal(t, "data_scrape", status.Job.FailedStage)
	assert.Equal(t, 1, runner.Calls())
}

func TestRun_SkipsWhileRunning(t *testing.T) {
	runner := testingpkg.NewMockRunner(nil)
	release := runner.Block()
	svc, coordinator := newService(t, runner, "")

	require.NoError(t, svc.Run())
	_, running := svc.Running()
	assert.True(t, running)

	assert.NoError(t, svc.Run())
	assert.Len(t, coordinator.History(PipelineName), 1)

	release()
	coordinator.Wait()
}

func TestLatestLogFile(t *testing.T) {
	dir := t.TempDir()
	svc, _ := newService(t, testingpkg.NewMockRunner(nil), dir)

	name, err := svc.LatestLogFile()
	require.NoError(t, err)
	assert.Empty(t, name)

	older := filepath.Join(dir, "data_update_20250301.log")
	newer := filepath.Join(dir, "data_update_20250302.log")
	require.NoError(t, os.WriteFile(older, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "retraining.log"), []byte("x"), 0o644))

	base := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(older, base.Add(time.Hour), base.Add(time.Hour)))
	require.NoError(t, os.Chtimes(newer, base, base))

	name, err = svc.LatestLogFile()
	require.NoError(t, err)
	assert.Equal(t, "data_update_20250301.log", name)

	status, err := svc.Status()
	require.NoError(t, err)
	require.NotNil(t, status.LogFile)
	assert.Equal(t, "data_update_20250301.log", *status.LogFile)
	assert.Equal(t, jobs.StateIdle, status.State)
}
