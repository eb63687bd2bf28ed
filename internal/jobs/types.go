// Package jobs runs named multi-stage engine pipelines in the background and
// tracks each run as a job record that callers poll by id.
package jobs

import (
	"errors"
	"time"

	"github.com/pyethone/betbridge/internal/engine"
)

// State is the lifecycle state of a pipeline or job
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

var (
	// ErrAlreadyRunning is returned when a pipeline is started while a job for it is running
	ErrAlreadyRunning = errors.New("pipeline is already running")
	// ErrUnknownPipeline is returned for pipelines that were never registered
	ErrUnknownPipeline = errors.New("unknown pipeline")
	// ErrJobNotFound is returned for ids not in the history
	ErrJobNotFound = errors.New("job not found")
	// ErrClosed is returned by Start after Close
	ErrClosed = errors.New("coordinator is closed")
)

// DefaultHistorySize is how many finished jobs are kept
const DefaultHistorySize = 20

// Stage is one step of a pipeline. Stages run in order.
type Stage struct {
	Name        string // e.g. feature_generation
	Description string // e.g. Feature generation
	Invocation  engine.Invocation
}

// Pipeline is a named, ordered list of stages
type Pipeline struct {
	Name   string
	Stages []Stage
}

// StageResult records how one stage ended
type StageResult struct {
	Name       string    `json:"name"`
	State      State     `json:"state"`
	ExitCode   int       `json:"exit_code"`
	TimedOut   bool      `json:"timed_out,omitempty"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// Job is one run of a pipeline. Values returned by the coordinator are copies.
type Job struct {
	ID          string        `json:"id"`
	Pipeline    string        `json:"pipeline"`
	State       State         `json:"state"`
	Stages      []StageResult `json:"stages"`
	FailedStage string        `json:"failed_stage,omitempty"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  *time.Time    `json:"finished_at,omitempty"`
}

func (j *Job) clone() Job {
	c := *j
	c.Stages = make([]StageResult, len(j.Stages))
	copy(c.Stages, j.Stages)
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return c
}

// EventKind names a point in a job's life
type EventKind string

const (
	EventJobStarted    EventKind = "job_started"
	EventStageStarted  EventKind = "stage_started"
	EventStageFinished EventKind = "stage_finished"
	EventJobFinished   EventKind = "job_finished"
)

// Event is delivered to listeners synchronously from the job goroutine.
// Stage is nil for job-level events.
type Event struct {
	Kind  EventKind
	Job   Job
	Stage *Stage
	// Result is set for EventStageFinished
	Result *StageResult
}

// Listener receives job events
type Listener func(Event)
