// Package chain is the pipeline controller: it discovers the next story,
// drives it through the task loop and both gates, promotes epics, and
// either stops after one story or keeps chaining until the backlog is
// exhausted.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pablasso/storyrunner/internal/backlog"
	"github.com/pablasso/storyrunner/internal/config"
	"github.com/pablasso/storyrunner/internal/executor"
	"github.com/pablasso/storyrunner/internal/gate"
	"github.com/pablasso/storyrunner/internal/logging"
)

// Escalation categories owned by the controller, complementing the
// executor's task-loop categories.
const (
	CategoryMissingArtifact  = "missing-artifact"
	CategoryGenerationFailed = "generation-failed"
	CategoryValidationFailed = "validation-failed"
	CategoryReviewBlocked    = "review-blocked"
	CategoryReviewExhausted  = "review-exhausted"
	CategoryWallClock        = "wall-clock-exceeded"
)

// errEscalated signals that a requested story was escalated before it
// could run; the summary already records the details.
var errEscalated = errors.New("story escalated")

// StoryRunner drives one story's task loop.
type StoryRunner interface {
	Run(ctx context.Context, story *backlog.Story) (*executor.Outcome, error)
}

// Validator runs the validation gate.
type Validator interface {
	Run(ctx context.Context, story *backlog.Story) (*gate.ValidationResult, error)
	RunEpic(ctx context.Context, ws *backlog.Workspace, epic int) (*gate.ValidationResult, error)
}

// Reviewer runs the review gate.
type Reviewer interface {
	Run(ctx context.Context, story *backlog.Story) (*gate.ReviewResult, error)
}

// StoryGenerator synthesizes missing story artifacts.
type StoryGenerator interface {
	Generate(ctx context.Context, ws *backlog.Workspace, key backlog.Key) (*backlog.Story, error)
}

// Escalation records one story routed to review and why.
type Escalation struct {
	Key      backlog.Key
	Category string
	Reason   string
}

// Summary is the final accounting of a run.
type Summary struct {
	RunID            string
	StoriesDone      int
	StoriesEscalated int
	Escalations      []Escalation
	// Exhausted means chain mode stopped because no runnable story
	// remained.
	Exhausted bool
	Elapsed   time.Duration
}

// Clean reports whether the run ended without any escalation.
func (s *Summary) Clean() bool {
	return s.StoriesEscalated == 0
}

// Pipeline bundles the stages the controller composes.
type Pipeline struct {
	RunID      string
	RunDir     string
	Executor   StoryRunner
	Validation Validator
	Review     Reviewer
	Generator  StoryGenerator
}

// Controller owns the outer pipeline loop and the per-story wall-clock
// budget.
type Controller struct {
	ws     *backlog.Workspace
	ledger *backlog.Ledger
	cfg    *config.Config
	runID  string

	exec       StoryRunner
	validation Validator
	review     Reviewer
	gen        StoryGenerator
	timeline   *Timeline
	events     Events
	log        *logging.Logger

	start   time.Time
	summary *Summary
	// current is the story the executor is driving right now; task-level
	// timeline entries are keyed by it.
	current string
}

// New creates a Controller.
func New(ws *backlog.Workspace, ledger *backlog.Ledger, cfg *config.Config, p Pipeline) *Controller {
	return &Controller{
		ws:         ws,
		ledger:     ledger,
		cfg:        cfg,
		runID:      p.RunID,
		exec:       p.Executor,
		validation: p.Validation,
		review:     p.Review,
		gen:        p.Generator,
		timeline:   NewTimeline(p.RunDir),
		events:     NopEvents{},
		log:        logging.Nop(),
	}
}

// WithEvents sets the event sink.
func (c *Controller) WithEvents(ev Events) *Controller {
	c.events = ev
	return c
}

// WithLogger sets the debug logger.
func (c *Controller) WithLogger(log *logging.Logger) *Controller {
	c.log = log.WithComponent("chain")
	return c
}

// Run executes the pipeline. A non-empty storyIdent forces single-unit
// mode on that story; otherwise the configured chain flag decides whether
// to stop after one story or keep going. The returned Summary is valid
// even when err is non-nil.
func (c *Controller) Run(ctx context.Context, storyIdent string) (*Summary, error) {
	c.start = time.Now()
	c.summary = &Summary{RunID: c.runID}
	chainMode := c.cfg.Chain && storyIdent == ""

	c.events.OnRunStart(c.runID, chainMode)
	c.record(c.timeline.RunStarted(c.runID, chainMode))
	c.log.Info("run started", "run_id", c.runID, "chain", chainMode, "story", storyIdent)

	err := c.run(ctx, storyIdent, chainMode)
	if errors.Is(err, errEscalated) {
		err = nil
	}

	c.summary.Elapsed = time.Since(c.start)
	c.record(c.timeline.RunFinished(c.summary.StoriesDone, c.summary.StoriesEscalated, c.summary.Elapsed))
	c.events.OnRunEnd(c.summary)
	c.writeReport("")
	return c.summary, err
}

func (c *Controller) run(ctx context.Context, storyIdent string, chainMode bool) error {
	if storyIdent != "" {
		entry, err := c.ledger.ResolveStory(storyIdent)
		if err != nil {
			return err
		}
		switch entry.Status {
		case backlog.StatusDone:
			c.log.Info("story already done", "story", entry.Key.String())
			return nil
		case backlog.StatusReview:
			return fmt.Errorf("story %s is already escalated to review; it needs human attention", entry.Key)
		}
		u, err := c.discoverStory(ctx, entry)
		if err != nil {
			return err
		}
		_, err = c.runUnit(ctx, u)
		return err
	}

	for {
		u, err := c.discover(ctx)
		if err != nil {
			return err
		}
		if u == nil {
			c.summary.Exhausted = true
			c.log.Info("backlog exhausted")
			return nil
		}

		escalated, err := c.runUnit(ctx, u)
		if err != nil {
			return err
		}
		if !chainMode {
			return nil
		}
		if escalated {
			// Work is sequential; a failed story is never skipped, so the
			// chain stops here until a human clears it.
			c.log.Info("stopping chain on escalated story", "story", u.entry.Key.String())
			return nil
		}
	}
}

// runUnit drives one story through the full pipeline under its own
// wall-clock budget. The returned bool reports whether the story was
// escalated; errors are reserved for cancellation and infrastructure
// faults.
func (c *Controller) runUnit(ctx context.Context, u *unit) (bool, error) {
	key := u.entry.Key
	c.current = key.String()
	defer func() { c.current = "" }()

	c.events.OnStorySelected(key, u.story.Title(), u.resumed)
	c.record(c.timeline.StorySelected(key.String(), u.resumed))

	// The only place a story enters in-progress, once per run-start.
	if u.entry.Status == backlog.StatusReadyForDev {
		if err := c.ledger.SetStatus(key.String(), backlog.StatusInProgress); err != nil {
			return false, err
		}
	}

	completed, total := 0, 0
	if m, merr := u.story.Manifest(); merr == nil {
		completed, total = m.Counts()
	}
	c.record(c.timeline.StoryStarted(key.String(), completed, total))
	c.writeReport(key.String())

	storyStart := time.Now()
	sctx, cancel := context.WithTimeout(ctx, c.cfg.StoryTimeout)
	defer cancel()

	out, err := c.exec.Run(sctx, u.story)
	if err != nil {
		if ctx.Err() != nil {
			return false, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return true, c.escalateBudget(key)
		}
		return false, err
	}
	if out.Escalated {
		return true, c.escalate(key, out.Category, out.Reason)
	}

	if c.cfg.SkipValidation {
		c.log.Info("validation skipped", "story", key.String())
	} else {
		c.events.OnValidationStart()
		vres, verr := c.validation.Run(sctx, u.story)
		if verr != nil {
			if ctx.Err() != nil {
				return false, verr
			}
			if errors.Is(verr, context.DeadlineExceeded) {
				return true, c.escalateBudget(key)
			}
			// Unreadable validation commands are a structural problem
			// with the story artifact itself.
			return true, c.escalate(key, CategoryValidationFailed, verr.Error())
		}
		c.events.OnValidationEnd(vres)
		if !vres.Passed {
			c.record(c.timeline.ValidationFailed(key.String(), vres.Failed.Command, vres.Failed.ExitCode))
			reason := fmt.Sprintf("%s exited %d", vres.Failed.Command, vres.Failed.ExitCode)
			return true, c.escalate(key, CategoryValidationFailed, reason)
		}
		c.record(c.timeline.ValidationPassed(key.String(), len(vres.Results)))
	}

	rres, rerr := c.review.Run(sctx, u.story)
	if rerr != nil {
		if ctx.Err() != nil {
			return false, rerr
		}
		if errors.Is(rerr, context.DeadlineExceeded) {
			return true, c.escalateBudget(key)
		}
		return false, rerr
	}
	c.record(c.timeline.ReviewVerdict(key.String(), string(rres.Verdict), rres.Iterations))
	if !rres.Passed() {
		category := CategoryReviewBlocked
		if rres.Verdict == gate.VerdictExhausted {
			category = CategoryReviewExhausted
		}
		return true, c.escalate(key, category, rres.Reason)
	}

	if err := c.ledger.SetStatus(key.String(), backlog.StatusDone); err != nil {
		return false, err
	}
	elapsed := time.Since(storyStart)
	c.record(c.timeline.StoryDone(key.String(), out.Attempts, elapsed))
	c.events.OnStoryDone(key, elapsed)
	c.summary.StoriesDone++
	c.log.Info("story done", "story", key.String(), "attempts", out.Attempts, "elapsed", elapsed.String())
	c.writeReport("")

	// Epic promotion runs outside the story budget; its validation is
	// bounded by the commands themselves.
	if err := c.checkEpic(ctx, key.Epic); err != nil {
		return false, err
	}
	return false, nil
}

func (c *Controller) escalateBudget(key backlog.Key) error {
	reason := fmt.Sprintf("story exceeded its %s wall-clock budget", c.cfg.StoryTimeout)
	return c.escalate(key, CategoryWallClock, reason)
}

// escalate routes a story to review and records why everywhere it needs
// recording.
func (c *Controller) escalate(key backlog.Key, category, reason string) error {
	if err := c.ledger.SetStatus(key.String(), backlog.StatusReview); err != nil {
		return err
	}
	c.record(c.timeline.StoryEscalated(key.String(), category, reason))
	c.events.OnStoryEscalated(key, category, reason)
	c.summary.StoriesEscalated++
	c.summary.Escalations = append(c.summary.Escalations, Escalation{Key: key, Category: category, Reason: reason})
	c.log.Warn("story escalated", "story", key.String(), "category", category, "reason", reason)
	c.writeReport("")
	return nil
}

// record logs a timeline write failure; the run never stops because the
// journal hiccuped.
func (c *Controller) record(err error) {
	if err != nil {
		c.log.Warn("failed to log timeline event", "error", err.Error())
	}
}
