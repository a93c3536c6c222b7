package gate

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pablasso/storyrunner/internal/agent"
	"github.com/pablasso/storyrunner/internal/backlog"
	"github.com/pablasso/storyrunner/internal/logging"
	"github.com/pablasso/storyrunner/internal/supervise"
)

// Verdict is the review gate's final word on a story.
type Verdict string

const (
	// VerdictPass means the reviewer confirmed the story with no
	// remaining High or Medium findings.
	VerdictPass Verdict = "pass"
	// VerdictBlocked means findings exist that cannot be auto-fixed, or
	// an iteration gave no recognizable signal.
	VerdictBlocked Verdict = "blocked"
	// VerdictExhausted means the iteration budget ran out while the
	// reviewer was still applying fixes. Distinct from blocked so an
	// operator can tell "cannot be fixed" from "ran out of iterations".
	VerdictExhausted Verdict = "exhausted"
)

// ReviewResult reports the gate outcome and how many iterations it took.
type ReviewResult struct {
	Verdict    Verdict
	Iterations int
	Reason     string
}

// Passed reports whether the story may transition to done.
func (r *ReviewResult) Passed() bool {
	return r.Verdict == VerdictPass
}

// AttemptRunner runs one supervised worker attempt.
type AttemptRunner interface {
	Run(ctx context.Context, att supervise.Attempt) (*supervise.Result, error)
}

// ReviewEvents receives per-iteration callbacks.
type ReviewEvents interface {
	OnReviewStart(iteration, max int)
	OnReviewEnd(iteration int, signal string)
}

type nopReviewEvents struct{}

func (nopReviewEvents) OnReviewStart(int, int)  {}
func (nopReviewEvents) OnReviewEnd(int, string) {}

// Review runs the adversarial review cycle: each iteration is a fresh
// worker invocation that must independently verify the story and answer
// with exactly one signal. A "fixed" answer is never trusted to grade
// itself; it always forces another iteration.
type Review struct {
	super    AttemptRunner
	maxIters int
	runDir   string
	output   io.Writer
	events   ReviewEvents
	log      *logging.Logger
}

// NewReview creates the gate. Transcripts are written under runDir.
func NewReview(super AttemptRunner, maxIters int, runDir string) *Review {
	return &Review{
		super:    super,
		maxIters: maxIters,
		runDir:   runDir,
		events:   nopReviewEvents{},
		log:      logging.Nop(),
	}
}

// WithOutput streams live reviewer output to w.
func (r *Review) WithOutput(w io.Writer) *Review {
	r.output = w
	return r
}

// WithEvents sets the event sink.
func (r *Review) WithEvents(ev ReviewEvents) *Review {
	r.events = ev
	return r
}

// WithLogger sets the debug logger.
func (r *Review) WithLogger(log *logging.Logger) *Review {
	r.log = log.WithComponent("review")
	return r
}

// Run reviews a story whose tasks and validation have already passed.
func (r *Review) Run(ctx context.Context, story *backlog.Story) (*ReviewResult, error) {
	fixed := 0

	for iter := 1; iter <= r.maxIters; iter++ {
		r.events.OnReviewStart(iter, r.maxIters)
		r.log.Info("review iteration", "story", story.Key.String(), "iteration", iter, "max", r.maxIters)

		res, err := r.super.Run(ctx, supervise.Attempt{
			Objective:      buildReviewObjective(story, fixed),
			TranscriptPath: filepath.Join(r.runDir, "review", fmt.Sprintf("%s-r%d.log", story.Key, iter)),
			Output:         r.output,
		})
		if err != nil {
			return nil, err
		}
		if res.Outcome != supervise.OutcomePassed {
			// A dead iteration gave no signal; missing signals read as
			// blocked, never as pass.
			r.events.OnReviewEnd(iter, "")
			return &ReviewResult{
				Verdict:    VerdictBlocked,
				Iterations: iter,
				Reason:     fmt.Sprintf("review iteration %d ended without a verdict: %s", iter, res.Reason),
			}, nil
		}

		signal := agent.FindReviewSignal(res.Transcript)
		r.events.OnReviewEnd(iter, signal)
		r.log.Info("review signal", "story", story.Key.String(), "iteration", iter, "signal", signal)

		switch signal {
		case agent.ReviewPassSignal:
			return &ReviewResult{Verdict: VerdictPass, Iterations: iter}, nil
		case agent.ReviewBlockedSignal:
			return &ReviewResult{
				Verdict:    VerdictBlocked,
				Iterations: iter,
				Reason:     "reviewer found findings it could not auto-fix",
			}, nil
		case agent.ReviewFixedSignal:
			// Fixes applied; the next iteration re-verifies from scratch.
			fixed++
		default:
			return &ReviewResult{
				Verdict:    VerdictBlocked,
				Iterations: iter,
				Reason:     "review iteration emitted no recognized signal",
			}, nil
		}
	}

	return &ReviewResult{
		Verdict:    VerdictExhausted,
		Iterations: r.maxIters,
		Reason:     fmt.Sprintf("review budget exhausted after %d iterations while fixes were still being applied", r.maxIters),
	}, nil
}

// buildReviewObjective composes the adversarial reviewer prompt. fixed is
// how many earlier iterations applied fixes that now need re-verification.
func buildReviewObjective(story *backlog.Story, fixed int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an adversarial code reviewer for story %s: %s\n", story.Key, story.Title())
	fmt.Fprintf(&b, "The story file is at %s. Its tasks are all marked passed and project validation succeeded. ", story.Path)
	b.WriteString("Your job is to distrust that.\n\n")

	if fixed > 0 {
		fmt.Fprintf(&b, "A previous review iteration applied fixes (%d round(s) so far). ", fixed)
		b.WriteString("Re-verify everything from scratch; do not assume those fixes are correct.\n\n")
	}

	b.WriteString("Review procedure:\n")
	b.WriteString("1. Read the story file: every acceptance criterion and every task marked passed.\n")
	b.WriteString("2. Verify each one against actual code evidence. Read the implementation; do not trust descriptions or comments.\n")
	b.WriteString("3. Classify every finding as High, Medium, or Low severity.\n")
	b.WriteString("4. Fix every High and Medium finding yourself, now. Leave Low findings as written observations.\n\n")

	b.WriteString("Then finish with exactly one of these signals on its own line, and nothing after it:\n")
	fmt.Fprintf(&b, "- %s if there were zero High or Medium findings\n", agent.ReviewPassSignal)
	fmt.Fprintf(&b, "- %s if you found High or Medium findings and fixed them all\n", agent.ReviewFixedSignal)
	fmt.Fprintf(&b, "- %s if any High or Medium finding cannot be fixed without human help\n", agent.ReviewBlockedSignal)

	return b.String()
}
