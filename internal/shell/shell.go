// Package shell runs declared verification commands and reports exit
// status plus captured output. Commands come from story artifacts and
// configuration; they run through sh so pipelines and env vars work.
package shell

import (
	"context"
	"errors"
	"os/exec"
	"time"
)

// CommandContext is the function used to create exec.Cmd instances.
// It can be replaced in tests to mock command execution.
var CommandContext = exec.CommandContext

// CmdResult captures one command execution.
type CmdResult struct {
	Command  string
	Output   string
	ExitCode int
	Elapsed  time.Duration
}

// Passed reports whether the command exited zero.
func (r *CmdResult) Passed() bool {
	return r.ExitCode == 0
}

// Runner executes commands in a fixed working directory.
type Runner struct {
	Dir string
}

// Run executes one command and captures combined output. A non-zero exit
// is a result, not an error; errors mean the command could not run at all
// or the context ended.
func (r *Runner) Run(ctx context.Context, command string) (*CmdResult, error) {
	start := time.Now()
	cmd := CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = r.Dir

	out, err := cmd.CombinedOutput()
	res := &CmdResult{
		Command: command,
		Output:  string(out),
		Elapsed: time.Since(start),
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return nil, err
	}
	return res, nil
}

// RunAll executes commands in order and stops at the first failure.
// Returns the results of everything that ran; the last result is the
// failing one when ok is false.
func (r *Runner) RunAll(ctx context.Context, commands []string) (results []*CmdResult, ok bool, err error) {
	for _, command := range commands {
		res, err := r.Run(ctx, command)
		if err != nil {
			return results, false, err
		}
		results = append(results, res)
		if !res.Passed() {
			return results, false, nil
		}
	}
	return results, true, nil
}
