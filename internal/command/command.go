// Package command runs external programs behind an interface so callers can
// substitute canned output in tests.
package command

import (
	"context"
	"os/exec"
)

// Executor abstracts os/exec for testability.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// OSExecutor is the real Executor that uses os/exec.
type OSExecutor struct{}

func (e *OSExecutor) Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err = cmd.Output()
	if exitErr, ok := err.(*exec.ExitError); ok {
		stderr = exitErr.Stderr
	}
	return stdout, stderr, err
}
