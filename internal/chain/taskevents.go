package chain

import (
	"time"

	"github.com/pablasso/storyrunner/internal/backlog"
	"github.com/pablasso/storyrunner/internal/executor"
	"github.com/pablasso/storyrunner/internal/supervise"
)

// TaskEvents returns the sink the executor should report through. It
// forwards every callback to the controller's own event sink and mirrors
// attempt verdicts and task completions onto the run timeline, keyed by
// the story the controller is currently driving. Passed tasks also
// refresh the progress report, so task-level progress is visible between
// story transitions.
func (c *Controller) TaskEvents() executor.Events {
	return &taskRecorder{c: c}
}

type taskRecorder struct {
	c *Controller
}

func (r *taskRecorder) OnTaskStart(task backlog.Task, completed, total int) {
	r.c.events.OnTaskStart(task, completed, total)
}

func (r *taskRecorder) OnAttemptStart(task backlog.Task, attempt, maxAttempts int) {
	r.c.events.OnAttemptStart(task, attempt, maxAttempts)
}

func (r *taskRecorder) OnAttemptEnd(task backlog.Task, attempt int, outcome supervise.Outcome, elapsed time.Duration) {
	r.c.events.OnAttemptEnd(task, attempt, outcome, elapsed)
	r.c.record(r.c.timeline.AttemptFinished(r.c.current, task.ID, attempt, string(outcome), elapsed))
}

func (r *taskRecorder) OnTaskPassed(task backlog.Task, rescued bool) {
	r.c.events.OnTaskPassed(task, rescued)
	r.c.record(r.c.timeline.TaskPassed(r.c.current, task.ID, rescued))
	r.c.writeReport(r.c.current)
}

func (r *taskRecorder) OnTaskFailed(task backlog.Task, attempt int, reason string) {
	r.c.events.OnTaskFailed(task, attempt, reason)
}
