// Package testutil provides testing utilities for the storyrunner project.
package testutil

import (
	"context"
	"os/exec"
)

// MockCommandFunc creates a mock command that outputs the given response.
// Usage: agent.CommandContext = testutil.MockCommandFunc(response)
func MockCommandFunc(output string) func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "echo", "-n", output)
	}
}
