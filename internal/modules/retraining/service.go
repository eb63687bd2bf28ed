// Package retraining runs the two-stage model retraining pipeline (feature
// generation, then model training) as a background job.
package retraining

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pyethone/betbridge/internal/config"
	"github.com/pyethone/betbridge/internal/engine"
	"github.com/pyethone/betbridge/internal/jobs"
)

// PipelineName identifies the retraining pipeline in the job coordinator
const PipelineName = "retrain"

// Pipeline builds the retraining stages from the engine configuration
func Pipeline(cfg config.EngineConfig) jobs.Pipeline {
	stage := func(name, description, script string) jobs.Stage {
		return jobs.Stage{
			Name:        name,
			Description: description,
			Invocation: engine.Invocation{
				Name:       name,
				Executable: cfg.PythonBin,
				Script:     script,
				Timeout:    cfg.StageTimeout,
				Dir:        cfg.WorkDir,
			},
		}
	}
	return jobs.Pipeline{
		Name: PipelineName,
		Stages: []jobs.Stage{
			stage("feature_generation", "Feature generation", cfg.FeatureScript),
			stage("model_training", "Model training", cfg.TrainScript),
		},
	}
}

// Service triggers retraining and reports on it
type Service struct {
	coordinator *jobs.Coordinator
	pipeline    jobs.Pipeline
	activity    *ActivityLog
	log         zerolog.Logger
}

// NewService registers the retraining pipeline with the coordinator and mirrors
// its progress into the activity log.
func NewService(coordinator *jobs.Coordinator, cfg config.EngineConfig, activity *ActivityLog, log zerolog.Logger) (*Service, error) {
	s := &Service{
		coordinator: coordinator,
		pipeline:    Pipeline(cfg),
		activity:    activity,
		log:         log.With().Str("service", "retraining").Logger(),
	}
	if err := coordinator.Register(s.pipeline); err != nil {
		return nil, fmt.Errorf("failed to register retraining pipeline: %w", err)
	}
	coordinator.Subscribe(PipelineName, s.record)
	return s, nil
}

// record writes one activity line per job event
func (s *Service) record(e jobs.Event) {
	var msg string
	switch e.Kind {
	case jobs.EventJobStarted:
		msg = fmt.Sprintf("Retraining initiated (job %s)", e.Job.ID)
	case jobs.EventStageStarted:
		msg = fmt.Sprintf("Step %d: %s", len(e.Job.Stages)+1, e.Stage.Description)
	case jobs.EventStageFinished:
		if e.Result.State == jobs.StateFailed {
			msg = "ERROR: " + e.Result.Error
		} else {
			msg = e.Stage.Description + " completed successfully"
		}
	case jobs.EventJobFinished:
		if e.Job.State == jobs.StateSucceeded {
			msg = "Retraining completed successfully"
		} else {
			msg = "Retraining failed at stage " + e.Job.FailedStage
		}
	default:
		return
	}
	if err := s.activity.Append(msg); err != nil {
		s.log.Warn().Err(err).Msg("Failed to write retraining activity log")
	}
}

// Trigger starts a retraining job. It fails with jobs.ErrAlreadyRunning while
// another retraining job runs.
func (s *Service) Trigger() (jobs.Job, error) {
	return s.coordinator.Start(PipelineName)
}

// Status is the retraining summary served by GET /api/retrain
type Status struct {
	Info
	State jobs.State `json:"state"`
	Job   *jobs.Job  `json:"job"`
}

// Status combines the activity log with the latest job
func (s *Service) Status() (Status, error) {
	info, err := s.activity.Info()
	if err != nil {
		return Status{}, err
	}
	status := Status{Info: info, State: jobs.StateIdle}
	if job, ok := s.coordinator.Latest(PipelineName); ok {
		status.Job = &job
		status.State = job.State
	}
	return status, nil
}

// Job returns a retraining job by id
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

// History returns the remembered retraining jobs, newest first
func (s *Service) History() []jobs.Job {
	return s.coordinator.History(PipelineName)
}

// Running returns the in-flight retraining job, if any
func (s *Service) Running() (jobs.Job, bool) {
	job, ok := s.coordinator.Latest(PipelineName)
	if !ok || job.State != jobs.StateRunning {
		return jobs.Job{}, false
	}
	return job, true
}

// StageNames lists the pipeline stages in order
func (s *Service) StageNames() []string {
	names := make([]string, len(s.pipeline.Stages))
	for i, stage := range s.pipeline.Stages {
		names[i] = stage.Name
	}
	return names
}
