package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pyethone/betbridge/internal/engine"
	"github.com/pyethone/betbridge/internal/metrics"
)

// Coordinator runs at most one job per pipeline at a time. A start request for a
// pipeline that is already running is rejected, never queued.
type Coordinator struct {
	runner      engine.Runner
	log         zerolog.Logger
	historySize int
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	pipelines map[string]Pipeline
	listeners map[string][]Listener
	running   map[string]*Job // pipeline -> in-flight job
	jobs      map[string]*Job
	order     []string // job ids, oldest first
}

// NewCoordinator creates a coordinator keeping the last historySize jobs
// (DefaultHistorySize when <= 0).
func NewCoordinator(runner engine.Runner, historySize int, log zerolog.Logger) *Coordinator {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		runner:      runner,
		log:         log.With().Str("component", "jobs").Logger(),
		historySize: historySize,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		pipelines:   make(map[string]Pipeline),
		listeners:   make(map[string][]Listener),
		running:     make(map[string]*Job),
		jobs:        make(map[string]*Job),
	}
}

// Register adds or replaces a pipeline definition
func (c *Coordinator) Register(p Pipeline) error {
	if p.Name == "" {
		return fmt.Errorf("pipeline name is required")
	}
	if len(p.Stages) == 0 {
		return fmt.Errorf("pipeline %s has no stages", p.Name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pipelines[p.Name] = p
	return nil
}

// Subscribe registers a listener for one pipeline's events
func (c *Coordinator) Subscribe(pipeline string, l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners[pipeline] = append(c.listeners[pipeline], l)
}

// Start launches a job for the pipeline and returns it in the running state.
func (c *Coordinator) Start(pipeline string) (Job, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Job{}, ErrClosed
	}
	p, ok := c.pipelines[pipeline]
	if !ok {
		c.mu.Unlock()
		return Job{}, fmt.Errorf("%w: %s", ErrUnknownPipeline, pipeline)
	}
	if current, busy := c.running[pipeline]; busy {
		c.mu.Unlock()
		return Job{}, fmt.Errorf("%w: job %s", ErrAlreadyRunning, current.ID)
	}

	job := &Job{
		ID:        uuid.NewString(),
		Pipeline:  pipeline,
		State:     StateRunning,
		Stages:    []StageResult{},
		StartedAt: c.now().UTC(),
	}
	c.running[pipeline] = job
	c.remember(job)
	snapshot := job.clone()
	listeners := append([]Listener(nil), c.listeners[pipeline]...)
	c.wg.Add(1)
	c.mu.Unlock()

	metrics.RecordJobStarted(pipeline)
	c.log.Info().Str("pipeline", pipeline).Str("job_id", job.ID).Msg("Job started")

	go c.run(p, job, listeners)
	return snapshot, nil
}

// remember appends to the bounded history; callers hold c.mu.
func (c *Coordinator) remember(job *Job) {
	c.jobs[job.ID] = job
	c.order = append(c.order, job.ID)
	for len(c.order) > c.historySize {
		oldest := c.order[0]
		// Running jobs are never evicted
		if j := c.jobs[oldest]; j != nil && j.State == StateRunning {
			break
		}
		delete(c.jobs, oldest)
		c.order = c.order[1:]
	}
}

func (c *Coordinator) run(p Pipeline, job *Job, listeners []Listener) {
	defer c.wg.Done()

	notify := func(e Event) {
		for _, l := range listeners {
			l(e)
		}
	}
	notify(Event{Kind: EventJobStarted, Job: c.snapshot(job)})

	state := StateSucceeded
	for i := range p.Stages {
		stage := p.Stages[i]
		notify(Event{Kind: EventStageStarted, Job: c.snapshot(job), Stage: &stage})

		result := c.runStage(stage)

		c.mu.Lock()
		job.Stages = append(job.Stages, result)
		if result.State == StateFailed {
			job.FailedStage = stage.Name
			job.Error = result.Error
		}
		c.mu.Unlock()

		notify(Event{Kind: EventStageFinished, Job: c.snapshot(job), Stage: &stage, Result: &result})

		if result.State == StateFailed {
			state = StateFailed
			break
		}
	}

	finished := c.now().UTC()
	c.mu.Lock()
	job.State = state
	job.FinishedAt = &finished
	delete(c.running, p.Name)
	c.mu.Unlock()

	duration := finished.Sub(job.StartedAt)
	metrics.RecordJobFinished(p.Name, string(state), duration)

	event := c.log.Info()
	if state == StateFailed {
		event = c.log.Warn().Str("failed_stage", job.FailedStage)
	}
	event.
		Str("pipeline", p.Name).
		Str("job_id", job.ID).
		Str("state", string(state)).
		Dur("duration", duration).
		Msg("Job finished")

	notify(Event{Kind: EventJobFinished, Job: c.snapshot(job)})
}

// runStage invokes one stage. Start failures, nonzero exits and timeouts fail it.
func (c *Coordinator) runStage(stage Stage) StageResult {
	result := StageResult{Name: stage.Name, StartedAt: c.now().UTC()}

	res, err := c.runner.Invoke(c.ctx, stage.Invocation)
	if res != nil {
		result.ExitCode = res.ExitCode
		result.TimedOut = res.TimedOut
		result.Output = res.Output
		result.DurationMs = res.Duration.Milliseconds()
	}

	label := stage.Description
	if label == "" {
		label = stage.Name
	}
	switch {
	case err != nil:
		result.State = StateFailed
		result.Error = fmt.Sprintf("%s failed: %v", label, err)
	case res.TimedOut:
		result.State = StateFailed
		result.Error = fmt.Sprintf("%s timed out after %s", label, stage.Invocation.Timeout)
	case res.ExitCode != 0:
		result.State = StateFailed
		result.Error = fmt.Sprintf("%s failed: %s", label, res.Output)
	default:
		result.State = StateSucceeded
	}
	return result
}

func (c *Coordinator) snapshot(job *Job) Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return job.clone()
}

// Get returns a job by id
func (c *Coordinator) Get(id string) (Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return job.clone(), nil
}

// Latest returns the most recent job of a pipeline, if any
func (c *Coordinator) Latest(pipeline string) (Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.order) - 1; i >= 0; i-- {
		if j := c.jobs[c.order[i]]; j != nil && j.Pipeline == pipeline {
			return j.clone(), true
		}
	}
	return Job{}, false
}

// History returns a pipeline's remembered jobs, newest first
func (c *Coordinator) History(pipeline string) []Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []Job{}
	for i := len(c.order) - 1; i >= 0; i-- {
		if j := c.jobs[c.order[i]]; j != nil && j.Pipeline == pipeline {
			out = append(out, j.clone())
		}
	}
	return out
}

// State is the pipeline's state: its latest job's state, or idle if it never ran.
func (c *Coordinator) State(pipeline string) State {
	if job, ok := c.Latest(pipeline); ok {
		return job.State
	}
	return StateIdle
}

// States returns the state of every registered pipeline
func (c *Coordinator) States() map[string]State {
	c.mu.Lock()
	names := make([]string, 0, len(c.pipelines))
	for name := range c.pipelines {
		names = append(names, name)
	}
	c.mu.Unlock()

	out := make(map[string]State, len(names))
	for _, name := range names {
		out[name] = c.State(name)
	}
	return out
}

// Wait blocks until no job is running
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close rejects new jobs, kills running stages and waits for their goroutines.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}
