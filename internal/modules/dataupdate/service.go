// Package dataupdate runs the data refresh pipeline: the scraper shell script,
// then the result matcher that scores saved predictions against real results.
package dataupdate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/pyethone/betbridge/internal/config"
	"github.com/pyethone/betbridge/internal/engine"
	"github.com/pyethone/betbridge/internal/jobs"
)

// PipelineName identifies the data refresh pipeline in the job coordinator
const PipelineName = "update_data"

// logPattern matches the per-run logs written by the scraper script
const logPattern = "data_update_*.log"

// Pipeline builds the data refresh stages. The result matching stage is left
// out when no match script is configured.
func Pipeline(cfg config.EngineConfig) jobs.Pipeline {
	p := jobs.Pipeline{
		Name: PipelineName,
		Stages: []jobs.Stage{{
			Name:        "data_scrape",
			Description: "Data scrape",
			Invocation: engine.Invocation{
				Name:       "data_scrape",
				Executable: cfg.UpdateShell,
				Script:     cfg.UpdateScript,
				Timeout:    cfg.StageTimeout,
				Dir:        cfg.WorkDir,
			},
		}},
	}
	if cfg.MatchScript != "" {
		p.Stages = append(p.Stages, jobs.Stage{
			Name:        "result_matching",
			Description: "Result matching",
			Invocation: engine.Invocation{
				Name:       "result_matching",
				Executable: cfg.PythonBin,
				Script:     cfg.MatchScript,
				Timeout:    cfg.StageTimeout,
				Dir:        cfg.WorkDir,
			},
		})
	}
	return p
}

// Service triggers data refreshes and reports on them
type Service struct {
	coordinator *jobs.Coordinator
	logDir      string
	log         zerolog.Logger
}

// NewService registers the data refresh pipeline with the coordinator
func NewService(coordinator *jobs.Coordinator, cfg config.EngineConfig, logDir string, log zerolog.Logger) (*Service, error) {
	if err := coordinator.Register(Pipeline(cfg)); err != nil {
		return nil, fmt.Errorf("failed to register data update pipeline: %w", err)
	}
	return &Service{
		coordinator: coordinator,
		logDir:      logDir,
		log:         log.With().Str("service", "dataupdate").Logger(),
	}, nil
}

// Trigger starts a data refresh. It fails with jobs.ErrAlreadyRunning while
// another refresh runs.
func (s *Service) Trigger() (jobs.Job, error) {
	return s.coordinator.Start(PipelineName)
}

// Name implements scheduler.Job
func (s *Service) Name() string {
	return "data_update"
}

// Run implements scheduler.Job. A refresh that is still running from an
// earlier trigger is not an error for the schedule.
func (s *Service) Run() error {
	job, err := s.Trigger()
	if errors.Is(err, jobs.ErrAlreadyRunning) {
		s.log.Info().Msg("Data update already running, skipping scheduled run")
		return nil
	}
	if err != nil {
		return err
	}
	s.log.Info().Str("job_id", job.ID).Msg("Scheduled data update started")
	return nil
}

// Status is the data refresh summary served by GET /api/update-data
type Status struct {
	State   jobs.State `json:"state"`
	Job     *jobs.Job  `json:"job"`
	LogFile *string    `json:"log_file"`
}

// Status combines the latest job with the newest scraper log
func (s *Service) Status() (Status, error) {
	status := Status{State: jobs.StateIdle}
	if job, ok := s.coordinator.Latest(PipelineName); ok {
		status.Job = &job
		status.State = job.State
	}
	logFile, err := s.LatestLogFile()
	if err != nil {
		return Status{}, err
	}
	if logFile != "" {
		status.LogFile = &logFile
	}
	return status, nil
}

// LatestLogFile returns the base name of the most recently modified scraper
// log, or "" when there is none.
func (s *Service) LatestLogFile() (string, error) {
	if s.logDir == "" {
		return "", nil
	}
	matches, err := filepath.Glob(filepath.Join(s.logDir, logPattern))
	if err != nil {
		return "", fmt.Errorf("failed to list data update logs: %w", err)
	}

	var newest string
	var newestInfo os.FileInfo
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if newestInfo == nil || info.ModTime().After(newestInfo.ModTime()) {
			newest, newestInfo = path, info
		}
	}
	if newest == "" {
		return "", nil
	}
	return filepath.Base(newest), nil
}

// Job returns a data refresh job by id
func (s *Service) Job(id string) (jobs.Job, error) {
	job, err := s.coordinator.Get(id)
	if err != nil {
		return jobs.Job{}, err
	}
	if job.Pipeline != PipelineName {
		return jobs.Job{}, jobs.ErrJobNotFound
	}
	return job, nil
}

// History returns the remembered data refresh jobs, newest first
func (s *Service) History() []jobs.Job {
	return s.coordinator.History(PipelineName)
}

// Running returns the in-flight data refresh job, if any
func (s *Service) Running() (jobs.Job, bool) {
	job, ok := s.coordinator.Latest(PipelineName)
	if !ok || job.State != jobs.StateRunning {
		return jobs.Job{}, false
	}
	return job, true
}
