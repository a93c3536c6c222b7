package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/pablasso/storyrunner/internal/backlog"
	"github.com/pablasso/storyrunner/internal/chain"
	"github.com/pablasso/storyrunner/internal/gate"
	"github.com/pablasso/storyrunner/internal/supervise"
	"github.com/pablasso/storyrunner/internal/tui/styles"
)

// Console prints pipeline events as plain lines, with the raw worker
// stream interleaved. This is the default sink when the TUI is off.
type Console struct {
	out io.Writer
}

// NewConsole creates a console sink writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// OutputWriter returns the writer the live worker transcript should
// stream to.
func (c *Console) OutputWriter() io.Writer {
	return c.out
}

func (c *Console) OnRunStart(runID string, chainMode bool) {
	mode := "single story"
	if chainMode {
		mode = "chain"
	}
	fmt.Fprintln(c.out, styles.Title.Render(fmt.Sprintf("Run %s (%s mode)", runID, mode)))
}

func (c *Console) OnStorySelected(key backlog.Key, title string, resumed bool) {
	suffix := ""
	if resumed {
		suffix = " (resuming)"
	}
	fmt.Fprintf(c.out, "\nStory %s: %s%s\n", key, title, suffix)
}

func (c *Console) OnGenerationStart(key backlog.Key) {
	fmt.Fprintf(c.out, "Generating story file for %s...\n", key)
}

func (c *Console) OnGenerationEnd(key backlog.Key, err error) {
	if err != nil {
		fmt.Fprintln(c.out, styles.Error.Render(fmt.Sprintf("Generation failed for %s: %v", key, err)))
		return
	}
	fmt.Fprintf(c.out, "Story file for %s written.\n", key)
}

func (c *Console) OnTaskStart(task backlog.Task, completed, total int) {
	fmt.Fprintf(c.out, "\nTask %d/%d: %s\n", completed+1, total, task.Title)
}

func (c *Console) OnAttemptStart(task backlog.Task, attempt, maxAttempts int) {
	fmt.Fprintf(c.out, "[Attempt %d/%d]\n", attempt, maxAttempts)
}

func (c *Console) OnAttemptEnd(task backlog.Task, attempt int, outcome supervise.Outcome, elapsed time.Duration) {
	line := fmt.Sprintf("Attempt %d finished: %s (%s)", attempt, outcome, formatDuration(elapsed))
	if outcome == supervise.OutcomePassed {
		fmt.Fprintln(c.out, line)
	} else {
		fmt.Fprintln(c.out, styles.Subtle.Render(line))
	}
}

func (c *Console) OnTaskPassed(task backlog.Task, rescued bool) {
	msg := fmt.Sprintf("✓ Task %d passed", task.ID)
	if rescued {
		msg += " (verified by check commands)"
	}
	fmt.Fprintln(c.out, styles.Success.Render(msg))
}

func (c *Console) OnTaskFailed(task backlog.Task, attempt int, reason string) {
	fmt.Fprintln(c.out, styles.Error.Render(fmt.Sprintf("✗ Task %d attempt %d failed: %s", task.ID, attempt, reason)))
}

func (c *Console) OnValidationStart() {
	fmt.Fprintln(c.out, "\nRunning validation...")
}

func (c *Console) OnValidationEnd(result *gate.ValidationResult) {
	if result.Passed {
		fmt.Fprintln(c.out, styles.Success.Render(fmt.Sprintf("✓ Validation passed (%d commands)", len(result.Results))))
		return
	}
	fmt.Fprintln(c.out, styles.Error.Render(fmt.Sprintf("✗ Validation failed: %s (exit %d)", result.Failed.Command, result.Failed.ExitCode)))
}

func (c *Console) OnReviewStart(iteration, max int) {
	fmt.Fprintf(c.out, "\nReview iteration %d/%d...\n", iteration, max)
}

func (c *Console) OnReviewEnd(iteration int, signal string) {
	if signal == "" {
		fmt.Fprintln(c.out, styles.Subtle.Render("Review gave no verdict"))
		return
	}
	fmt.Fprintf(c.out, "Review verdict: %s\n", signal)
}

func (c *Console) OnStoryDone(key backlog.Key, elapsed time.Duration) {
	fmt.Fprintln(c.out, styles.Success.Render(fmt.Sprintf("\nStory %s done (%s)", key, formatDuration(elapsed))))
}

func (c *Console) OnStoryEscalated(key backlog.Key, category, reason string) {
	fmt.Fprintln(c.out, styles.Error.Render(fmt.Sprintf("\nStory %s escalated to review [%s]: %s", key, category, reason)))
}

func (c *Console) OnEpicDone(epic int) {
	fmt.Fprintln(c.out, styles.Success.Render(fmt.Sprintf("Epic %d complete", epic)))
}

func (c *Console) OnEpicFailed(epic int, reason string) {
	fmt.Fprintln(c.out, styles.Error.Render(fmt.Sprintf("Epic %d validation failed: %s", epic, reason)))
}

func (c *Console) OnRunEnd(summary *chain.Summary) {
	fmt.Fprintf(c.out, "\nRun finished in %s: %d done, %d escalated.\n",
		formatDuration(summary.Elapsed), summary.StoriesDone, summary.StoriesEscalated)
	if summary.Exhausted {
		fmt.Fprintln(c.out, "Backlog exhausted; nothing left to run.")
	}
}

// formatDuration formats a duration as HH:MM:SS or MM:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
