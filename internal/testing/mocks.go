package testing

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pyethone/betbridge/internal/engine"
)

// FakeEngineScript writes a /bin/sh script that stands in for an external engine
// and returns its path. Invoke it with Executable "/bin/sh".
func FakeEngineScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("Failed to write fake engine %s: %v", name, err)
	}
	return path
}

// MockRunner is an engine.Runner that records invocations and replays scripted results.
type MockRunner struct {
	mu          sync.Mutex
	invocations []engine.Invocation
	results     map[string]*engine.Result // keyed by Invocation.Name
	errs        map[string]error
	fallback    *engine.Result
	block       chan struct{}
}

// NewMockRunner creates a runner that answers every invocation with fallback
func NewMockRunner(fallback *engine.Result) *MockRunner {
	return &MockRunner{
		results:  make(map[string]*engine.Result),
		errs:     make(map[string]error),
		fallback: fallback,
	}
}

// SetResult scripts the result for invocations named name
func (m *MockRunner) SetResult(name string, res *engine.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[name] = res
}

// SetError scripts a start failure for invocations named name
func (m *MockRunner) SetError(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[name] = err
}

// Block makes every invocation wait until the returned release function is called
// (or the invocation context ends).
func (m *MockRunner) Block() (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	m.block = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Invoke implements engine.Runner
func (m *MockRunner) Invoke(ctx context.Context, inv engine.Invocation) (*engine.Result, error) {
	m.mu.Lock()
	m.invocations = append(m.invocations, inv)
	block := m.block
	res, ok := m.results[inv.Name]
	if !ok {
		res = m.fallback
	}
	err := m.errs[inv.Name]
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return &engine.Result{ExitCode: engine.ExitCodeTimedOut, TimedOut: true}, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	if res == nil {
		return &engine.Result{ExitCode: 0, Output: `{"success": true}`}, nil
	}
	clone := *res
	return &clone, nil
}

// Calls returns the number of invocations so far
func (m *MockRunner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.invocations)
}

// Invocations returns a copy of the recorded invocations
func (m *MockRunner) Invocations() []engine.Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]engine.Invocation, len(m.invocations))
	copy(out, m.invocations)
	return out
}
