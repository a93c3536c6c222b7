// Package agent is the boundary to the external code-generating worker.
// The worker is a black box driven over its CLI: objective in, transcript
// out, with literal markers as the only structured signal.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// CommandContext is the function used to create exec.Cmd instances.
// It can be replaced in tests to mock worker execution.
var CommandContext = exec.CommandContext

// Worker runs one objective against the workspace and streams its
// transcript to out. Never assume idempotence or determinism across calls
// with the same objective.
type Worker interface {
	Attempt(ctx context.Context, objective string, out io.Writer) error
}

// Invoker runs a short side-channel objective and returns the captured
// output. Used for failure summarization and story generation, where the
// response is consumed rather than the workspace mutation.
type Invoker interface {
	Invoke(ctx context.Context, objective string) (string, error)
}

// Claude drives the Claude Code CLI.
type Claude struct {
	// Bin is the worker binary name, normally "claude".
	Bin string
	// Dir is the workspace the worker operates in.
	Dir string
}

// NewClaude creates a worker bound to a workspace directory.
func NewClaude(bin, dir string) *Claude {
	return &Claude{Bin: bin, Dir: dir}
}

// Available checks that the worker binary exists in PATH.
func (c *Claude) Available() bool {
	_, err := exec.LookPath(c.Bin)
	return err == nil
}

// Attempt runs the worker on an objective with full tool permissions,
// streaming stdout and stderr into out. The caller owns cancellation;
// a context kill surfaces as the command error.
func (c *Claude) Attempt(ctx context.Context, objective string, out io.Writer) error {
	cmd := CommandContext(ctx, c.Bin,
		"-p", objective,
		"--dangerously-skip-permissions",
	)
	cmd.Dir = c.Dir
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("worker exited with error: %w", err)
	}
	return nil
}

// Invoke runs a side-channel objective and captures the output. The same
// flags as Attempt apply so the worker can consult workspace files while
// composing its answer.
func (c *Claude) Invoke(ctx context.Context, objective string) (string, error) {
	cmd := CommandContext(ctx, c.Bin,
		"-p", objective,
		"--dangerously-skip-permissions",
	)
	cmd.Dir = c.Dir

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("worker invocation failed: %s", string(exitErr.Stderr))
		}
		return "", fmt.Errorf("failed to run worker: %w", err)
	}
	return string(output), nil
}
