// Package engine runs the external prediction, persistence and training engines
// and turns their textual output into structured results.
//
// An engine is invoked as `<interpreter> <script> <arg1> <arg2> ...`. It is expected to
// print free-form diagnostics followed by exactly one JSON object. Arguments are passed
// directly as argv; no shell ever sees them.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"

	"github.com/pyethone/betbridge/internal/metrics"
)

// ExitCodeTimedOut is the reserved exit code of a synthetic result produced
// when an invocation exceeded its timeout and was killed.
const ExitCodeTimedOut = -2

const (
	// DefaultTimeout applies when an Invocation carries no timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxOutputBytes caps captured output per invocation
	DefaultMaxOutputBytes int64 = 4 << 20

	// waitDelay bounds how long Wait blocks on output pipes after the process was killed
	waitDelay = 2 * time.Second
)

// ErrStartFailed is returned when the engine process could not be started at all.
var ErrStartFailed = errors.New("engine could not be started")

// Invocation describes one engine run. It is owned by the caller and never persisted.
type Invocation struct {
	Name       string // Label for logs and metrics (e.g. "predict", "train_models")
	Executable string
	Script     string
	Args       []string
	Timeout    time.Duration
	Dir        string
	Env        []string // Extra KEY=VALUE pairs appended to the inherited environment
}

// Argv returns the arguments passed to the executable: the script, then Args in order.
func (inv Invocation) Argv() []string {
	argv := make([]string, 0, len(inv.Args)+1)
	if inv.Script != "" {
		argv = append(argv, inv.Script)
	}
	return append(argv, inv.Args...)
}

// CommandLine renders the invocation as a shell-quoted string. Display only.
func (inv Invocation) CommandLine() string {
	return shellquote.Join(append([]string{inv.Executable}, inv.Argv()...)...)
}

func (inv Invocation) label() string {
	if inv.Name != "" {
		return inv.Name
	}
	return "engine"
}

// Result is the outcome of a process that was started.
type Result struct {
	ExitCode  int           `json:"exit_code"`
	Output    string        `json:"output"` // stdout and stderr, interleaved in arrival order
	Stderr    string        `json:"-"`
	Duration  time.Duration `json:"-"`
	TimedOut  bool          `json:"timed_out,omitempty"`
	Truncated bool          `json:"truncated,omitempty"`
}

// Succeeded reports whether the process ran to completion with exit code 0.
// It says nothing about whether the engine's logical operation succeeded.
func (r *Result) Succeeded() bool {
	return r != nil && !r.TimedOut && r.ExitCode == 0
}

// Runner executes engine invocations.
type Runner interface {
	Invoke(ctx context.Context, inv Invocation) (*Result, error)
}

// Bridge runs engines as child processes.
type Bridge struct {
	log            zerolog.Logger
	maxOutputBytes int64
}

// NewBridge creates a bridge capping captured output at maxOutputBytes.
func NewBridge(maxOutputBytes int64, log zerolog.Logger) *Bridge {
	if maxOutputBytes <= 0 {
		maxOutputBytes = DefaultMaxOutputBytes
	}
	return &Bridge{
		log:            log.With().Str("component", "engine_bridge").Logger(),
		maxOutputBytes: maxOutputBytes,
	}
}

// Invoke runs the invocation and blocks until the process exits or its timeout elapses.
//
// A nonzero exit code is not an error: it is returned in the Result for the caller
// to classify. On timeout the process and its children are killed and a Result with ExitCodeTimedOut
// and the partial output is returned. An error is returned only when the process
// could not be started (wrapping ErrStartFailed) or ctx was canceled by the caller.
func (b *Bridge) Invoke(ctx context.Context, inv Invocation) (*Result, error) {
	if inv.Executable == "" {
		return nil, fmt.Errorf("%w: executable is required", ErrStartFailed)
	}

	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, inv.Executable, inv.Argv()...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	cmd.WaitDelay = waitDelay
	setupProcessGroup(cmd)

	out := newCapture(b.maxOutputBytes)
	cmd.Stdout = out.writer(false)
	cmd.Stderr = out.writer(true)

	log := b.log.With().Str("engine", inv.label()).Logger()
	log.Debug().Str("command", inv.CommandLine()).Dur("timeout", timeout).Msg("Starting engine")

	start := time.Now()
	if err := cmd.Start(); err != nil {
		metrics.RecordEngineInvocation(inv.label(), "start_failed", time.Since(start))
		log.Error().Err(err).Str("command", inv.CommandLine()).Msg("Engine could not be started")
		return nil, fmt.Errorf("%w: %s: %v", ErrStartFailed, inv.Executable, err)
	}

	metrics.EngineInflight.Inc()
	waitErr := cmd.Wait()
	metrics.EngineInflight.Dec()

	res := &Result{
		Duration:  time.Since(start),
		Output:    out.combined.String(),
		Stderr:    out.stderr.String(),
		Truncated: out.truncated,
	}

	if waitErr != nil && runCtx.Err() != nil {
		res.ExitCode = ExitCodeTimedOut
		res.TimedOut = true
		metrics.RecordEngineInvocation(inv.label(), "timed_out", res.Duration)

		if errors.Is(ctx.Err(), context.Canceled) {
			log.Warn().Dur("duration", res.Duration).Msg("Engine killed: caller canceled")
			return res, fmt.Errorf("engine %s canceled: %w", inv.label(), ctx.Err())
		}
		log.Warn().
			Str("command", inv.CommandLine()).
			Dur("timeout", timeout).
			Int("output_bytes", len(res.Output)).
			Msg("Engine timed out and was killed")
		return res, nil
	}

	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	metrics.RecordEngineInvocation(inv.label(), "exited", res.Duration)

	event := log.Debug()
	if res.ExitCode != 0 {
		event = log.Warn()
	}
	event.
		Str("command", inv.CommandLine()).
		Int("exit_code", res.ExitCode).
		Int64("duration_ms", res.Duration.Milliseconds()).
		Int("output_bytes", len(res.Output)).
		Bool("truncated", res.Truncated).
		Msg("Engine finished")

	return res, nil
}

// capture collects stdout and stderr into one interleaved buffer, keeping stderr
// separately as well. Both buffers keep the last max bytes: the payload comes last.
type capture struct {
	mu        sync.Mutex
	max       int64
	combined  bytes.Buffer
	stderr    bytes.Buffer
	truncated bool
}

func newCapture(max int64) *capture {
	return &capture{max: max}
}

func (c *capture) writer(isStderr bool) *captureWriter {
	return &captureWriter{c: c, isStderr: isStderr}
}

func (c *capture) appendLimited(buf *bytes.Buffer, p []byte) {
	if int64(len(p)) > c.max {
		c.truncated = true
		buf.Reset()
		p = p[int64(len(p))-c.max:]
	}
	buf.Write(p)
	if over := int64(buf.Len()) - c.max; over > 0 {
		c.truncated = true
		buf.Next(int(over))
	}
}

type captureWriter struct {
	c        *capture
	isStderr bool
}

// Write always reports the full length so the child never sees a short write.
func (w *captureWriter) Write(p []byte) (int, error) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()

	w.c.appendLimited(&w.c.combined, p)
	if w.isStderr {
		w.c.appendLimited(&w.c.stderr, p)
	}
	return len(p), nil
}
