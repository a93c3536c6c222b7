package executor

import (
	"time"

	"github.com/pablasso/storyrunner/internal/backlog"
	"github.com/pablasso/storyrunner/internal/supervise"
)

// Events receives callbacks while a story's tasks execute.
// Implement this interface in the TUI or console to receive updates.
type Events interface {
	// OnTaskStart is called when a task is selected for execution
	OnTaskStart(task backlog.Task, completed, total int)

	// OnAttemptStart is called before each supervised worker attempt
	OnAttemptStart(task backlog.Task, attempt, maxAttempts int)

	// OnAttemptEnd is called with the supervisor's verdict on an attempt
	OnAttemptEnd(task backlog.Task, attempt int, outcome supervise.Outcome, elapsed time.Duration)

	// OnTaskPassed is called when a task is confirmed passed; rescued
	// means check commands confirmed it rather than the worker
	OnTaskPassed(task backlog.Task, rescued bool)

	// OnTaskFailed is called when an attempt ends without the task
	// passing, before any retry
	OnTaskFailed(task backlog.Task, attempt int, reason string)
}

// NopEvents discards all callbacks.
type NopEvents struct{}

func (NopEvents) OnTaskStart(backlog.Task, int, int)                               {}
func (NopEvents) OnAttemptStart(backlog.Task, int, int)                            {}
func (NopEvents) OnAttemptEnd(backlog.Task, int, supervise.Outcome, time.Duration) {}
func (NopEvents) OnTaskPassed(backlog.Task, bool)                                  {}
func (NopEvents) OnTaskFailed(backlog.Task, int, string)                           {}
