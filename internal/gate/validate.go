// Package gate holds the two quality gates a story must clear after its
// tasks complete: whole-project validation and adversarial review.
package gate

import (
	"context"

	"github.com/pablasso/storyrunner/internal/backlog"
	"github.com/pablasso/storyrunner/internal/logging"
	"github.com/pablasso/storyrunner/internal/shell"
)

// ValidationResult reports a gate run. Failed is nil when everything
// passed, otherwise it is the command that stopped the run.
type ValidationResult struct {
	Passed  bool
	Results []*shell.CmdResult
	Failed  *shell.CmdResult
}

// Validation runs build, test, and story-declared commands in order,
// stopping at the first failure. A validation failure is never retried;
// it marks an aggregate regression, not a flaky task.
type Validation struct {
	runner *shell.Runner
	build  string
	test   string
	log    *logging.Logger
}

// NewValidation creates the gate. Empty build or test commands are
// skipped rather than failed.
func NewValidation(runner *shell.Runner, build, test string) *Validation {
	return &Validation{
		runner: runner,
		build:  build,
		test:   test,
		log:    logging.Nop(),
	}
}

// WithLogger sets the debug logger.
func (v *Validation) WithLogger(log *logging.Logger) *Validation {
	v.log = log.WithComponent("validation")
	return v
}

// Run validates a story: project build, project test, then the story's
// own validation commands.
func (v *Validation) Run(ctx context.Context, story *backlog.Story) (*ValidationResult, error) {
	extra, err := story.ValidationCommands()
	if err != nil {
		return nil, err
	}
	return v.run(ctx, append(v.projectCommands(), extra...))
}

// RunEpic validates a completed epic: project build, project test, then
// any epic-declared validation commands.
func (v *Validation) RunEpic(ctx context.Context, ws *backlog.Workspace, epic int) (*ValidationResult, error) {
	extra, err := backlog.EpicValidationCommands(ws, epic)
	if err != nil {
		return nil, err
	}
	return v.run(ctx, append(v.projectCommands(), extra...))
}

func (v *Validation) projectCommands() []string {
	var cmds []string
	if v.build != "" {
		cmds = append(cmds, v.build)
	}
	if v.test != "" {
		cmds = append(cmds, v.test)
	}
	return cmds
}

func (v *Validation) run(ctx context.Context, cmds []string) (*ValidationResult, error) {
	results, ok, err := v.runner.RunAll(ctx, cmds)
	if err != nil {
		return nil, err
	}
	res := &ValidationResult{Passed: ok, Results: results}
	if !ok {
		res.Failed = results[len(results)-1]
		v.log.Warn("validation failed",
			"command", res.Failed.Command,
			"exit", res.Failed.ExitCode,
			"output", shellTail(res.Failed.Output))
	} else {
		v.log.Info("validation passed", "commands", len(results))
	}
	return res, nil
}

// shellTail trims command output for log records; full output lives in
// the command result.
func shellTail(out string) string {
	const max = 2000
	if len(out) <= max {
		return out
	}
	return out[len(out)-max:]
}
