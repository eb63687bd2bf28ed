//go:build !unix

package engine

import "os/exec"

// setupProcessGroup is a no-op where process groups are unavailable; only the
// engine process itself is killed on cancellation.
func setupProcessGroup(cmd *exec.Cmd) {}
