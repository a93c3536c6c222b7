// Package executor drives one story's tasks through bounded worker
// attempts. Tasks run strictly in order; a task that cannot be confirmed
// within the retry budget escalates the whole story.
package executor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/pablasso/storyrunner/internal/agent"
	"github.com/pablasso/storyrunner/internal/backlog"
	"github.com/pablasso/storyrunner/internal/logging"
	"github.com/pablasso/storyrunner/internal/shell"
	"github.com/pablasso/storyrunner/internal/supervise"
)

// stuckStrikes is how many consecutive identical false completion claims
// escalate the story. A worker that keeps asserting the marker while the
// story file never changes is looping, not progressing.
const stuckStrikes = 2

// Escalation categories recorded on the timeline when a story aborts.
const (
	CategoryMalformedManifest = "malformed-manifest"
	CategoryRetriesExhausted  = "retries-exhausted"
	CategoryStuckLoop         = "stuck-loop"
	CategoryFailureCap        = "failure-cap"
)

// AttemptRunner runs one supervised worker attempt.
type AttemptRunner interface {
	Run(ctx context.Context, att supervise.Attempt) (*supervise.Result, error)
}

// Summarizer condenses a failed attempt into corrective notes for the
// next one.
type Summarizer interface {
	Summarize(ctx context.Context, taskTitle, reason, transcript string) string
}

// Outcome reports how a story's task loop ended.
type Outcome struct {
	// Completed means every task in the manifest passes.
	Completed bool
	// Escalated means the story must go to review.
	Escalated bool
	// Category and Reason describe the escalation.
	Category string
	Reason   string
	// Attempts is the total worker attempts across all tasks.
	Attempts int
	// Failures is the number of distinct tasks that failed at least once.
	Failures int
}

// Options bounds the task loop.
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
	// FailureCap is the maximum distinct failed tasks tolerated per
	// story before force-escalating.
	FailureCap int
	// RunDir is where attempt transcripts are written.
	RunDir string
	// Output, when non-nil, receives the live worker stream.
	Output io.Writer
}

// Executor orchestrates the task loop for stories.
type Executor struct {
	super   AttemptRunner
	checks  *shell.Runner
	learner Summarizer
	opts    Options
	events  Events
	log     *logging.Logger
}

// New creates an Executor.
func New(super AttemptRunner, checks *shell.Runner, learner Summarizer, opts Options) *Executor {
	return &Executor{
		super:   super,
		checks:  checks,
		learner: learner,
		opts:    opts,
		events:  NopEvents{},
		log:     logging.Nop(),
	}
}

// WithEvents sets the event sink.
func (e *Executor) WithEvents(ev Events) *Executor {
	e.events = ev
	return e
}

// WithLogger sets the debug logger.
func (e *Executor) WithLogger(log *logging.Logger) *Executor {
	e.log = log.WithComponent("executor")
	return e
}

// escalation is a story-fatal condition found inside the loop.
type escalation struct {
	Category string
	Reason   string
}

// Run executes the story's tasks in order until the manifest reports
// done or an escalation fires. The returned error is non-nil only for
// context cancellation and infrastructure faults; escalations are part
// of the Outcome.
func (e *Executor) Run(ctx context.Context, story *backlog.Story) (*Outcome, error) {
	out := &Outcome{}
	failedTasks := make(map[int]bool)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m, err := story.Manifest()
		if err != nil {
			out.Escalated = true
			out.Category = CategoryMalformedManifest
			out.Reason = err.Error()
			return out, nil
		}
		if m.Done() {
			out.Completed = true
			return out, nil
		}

		task, _ := m.NextTask()
		completed, total := m.Counts()
		e.events.OnTaskStart(task, completed, total)
		e.log.Info("task selected", "story", story.Key.String(), "task", task.ID, "title", task.Title)

		esc, err := e.runTask(ctx, story, task, completed, total, out, failedTasks)
		if err != nil {
			return nil, err
		}
		if esc != nil {
			out.Escalated = true
			out.Category = esc.Category
			out.Reason = esc.Reason
			return out, nil
		}
	}
}

// runTask drives bounded attempts for one task. A nil escalation means
// the task was confirmed passed.
func (e *Executor) runTask(ctx context.Context, story *backlog.Story, task backlog.Task, completed, total int, out *Outcome, failedTasks map[int]bool) (*escalation, error) {
	learning := ""
	lastClaim := ""
	strikes := 0

	for attempt := 1; attempt <= e.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e.events.OnAttemptStart(task, attempt, e.opts.MaxRetries)
		out.Attempts++

		res, err := e.super.Run(ctx, supervise.Attempt{
			Objective:      buildObjective(story, task, completed, total, learning),
			TranscriptPath: e.transcriptPath(story, task, attempt),
			Marker:         agent.TaskCompleteMarker,
			Output:         e.opts.Output,
		})
		if err != nil {
			return nil, err
		}
		e.events.OnAttemptEnd(task, attempt, res.Outcome, res.Elapsed)
		e.log.Info("attempt finished",
			"story", story.Key.String(), "task", task.ID, "attempt", attempt,
			"outcome", string(res.Outcome), "elapsed", res.Elapsed.String())

		// The worker's self-report is not trusted: re-read the story file
		// and let the manifest decide whether the task advanced.
		if err := story.Reload(); err != nil {
			return nil, err
		}
		m, err := story.Manifest()
		if err != nil {
			return &escalation{CategoryMalformedManifest, fmt.Sprintf("manifest unreadable after attempt %d: %v", attempt, err)}, nil
		}
		if taskConfirmed(m, task.ID) {
			e.events.OnTaskPassed(task, false)
			return nil, nil
		}

		reason := res.Reason
		if res.Outcome == supervise.OutcomePassed {
			// Marker claimed but the file does not show it. Two identical
			// claims in a row mean the worker is stuck in a report loop.
			sig := claimSignature(task.ID, m)
			if sig == lastClaim {
				strikes++
				if strikes >= stuckStrikes {
					return &escalation{CategoryStuckLoop, fmt.Sprintf("task %d reported complete %d times with no story file change", task.ID, strikes)}, nil
				}
			} else {
				lastClaim = sig
				strikes = 1
			}
			reason = "worker reported completion but the story file does not mark the task as passed"
		} else {
			lastClaim = ""
			strikes = 0

			// Rescue path: the attempt claimed nothing, but the declared
			// check commands may still prove the work is done.
			if len(task.CheckCommands) > 0 && e.autoVerify(ctx, story, task) {
				e.events.OnTaskPassed(task, true)
				return nil, nil
			}
		}

		e.events.OnTaskFailed(task, attempt, reason)

		if !failedTasks[task.ID] {
			failedTasks[task.ID] = true
			out.Failures++
			if out.Failures > e.opts.FailureCap {
				return &escalation{CategoryFailureCap, fmt.Sprintf("%d distinct tasks failed, exceeding the per-story cap of %d", out.Failures, e.opts.FailureCap)}, nil
			}
		}

		if attempt < e.opts.MaxRetries {
			learning = e.learner.Summarize(ctx, task.Title, reason, res.Transcript)
			e.log.Debug("failure learning", "task", task.ID, "attempt", attempt, "summary", learning)

			select {
			case <-time.After(e.opts.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return &escalation{CategoryRetriesExhausted, fmt.Sprintf("task %d failed after %d attempts", task.ID, e.opts.MaxRetries)}, nil
}

// autoVerify runs the task's check commands and, when all pass, marks
// the task passed on the worker's behalf.
func (e *Executor) autoVerify(ctx context.Context, story *backlog.Story, task backlog.Task) bool {
	results, ok, err := e.checks.RunAll(ctx, task.CheckCommands)
	if err != nil {
		e.log.Debug("auto-verify aborted", "task", task.ID, "error", err.Error())
		return false
	}
	if !ok {
		last := results[len(results)-1]
		e.log.Debug("auto-verify failed", "task", task.ID, "command", last.Command, "exit", last.ExitCode)
		return false
	}
	if err := story.MarkTaskPassed(task.ID); err != nil {
		e.log.Warn("auto-verify could not mark task passed", "task", task.ID, "error", err.Error())
		return false
	}
	e.log.Info("task rescued by check commands", "story", story.Key.String(), "task", task.ID)
	return true
}

func (e *Executor) transcriptPath(story *backlog.Story, task backlog.Task, attempt int) string {
	name := fmt.Sprintf("%s-t%d-a%d.log", story.Key, task.ID, attempt)
	return filepath.Join(e.opts.RunDir, "attempts", name)
}

// taskConfirmed reports whether the manifest shows the task passed or
// the extractor has advanced past it.
func taskConfirmed(m *backlog.Manifest, id int) bool {
	for _, t := range m.Tasks {
		if t.ID == id {
			if t.Passes {
				return true
			}
			break
		}
	}
	if m.Done() {
		return true
	}
	if next, ok := m.NextTask(); ok && next.ID > id {
		return true
	}
	return false
}

// claimSignature fingerprints a false completion claim so repeats are
// distinguishable from claims made after real progress.
func claimSignature(taskID int, m *backlog.Manifest) string {
	completed, total := m.Counts()
	return fmt.Sprintf("%d:%d/%d", taskID, completed, total)
}
