package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	// summaryTimeout bounds the side-channel summarization call. A hung
	// summarizer must not eat into the retry budget.
	summaryTimeout = 120 * time.Second

	// fallbackTailLines is how much raw transcript stands in for a
	// summary when summarization itself fails.
	fallbackTailLines = 30
)

// Learner distills a failed attempt's transcript into a handful of
// bullets that the next attempt can act on.
type Learner struct {
	invoker Invoker
}

// NewLearner creates a Learner backed by the given side-channel invoker.
func NewLearner(inv Invoker) *Learner {
	return &Learner{invoker: inv}
}

// Summarize produces 3 to 5 bullets describing why the attempt failed
// and what the next attempt should do differently. It never fails: when
// the summarization call errors or returns nothing usable, the tail of
// the raw transcript is returned instead so the next attempt still sees
// what happened.
func (l *Learner) Summarize(ctx context.Context, taskTitle, reason, transcript string) string {
	sctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()

	prompt := buildSummaryPrompt(taskTitle, reason, transcript)
	out, err := l.invoker.Invoke(sctx, prompt)
	if err == nil {
		if s := strings.TrimSpace(out); s != "" {
			return s
		}
	}
	return "Raw output from the failed attempt:\n" + Tail(transcript, fallbackTailLines)
}

func buildSummaryPrompt(taskTitle, reason, transcript string) string {
	var b strings.Builder
	b.WriteString("An automated coding attempt at the task below failed. ")
	fmt.Fprintf(&b, "Failure reason: %s.\n\n", reason)
	fmt.Fprintf(&b, "Task: %s\n\n", taskTitle)
	b.WriteString("Read the transcript and answer with 3 to 5 short bullets: ")
	b.WriteString("what went wrong, and what a fresh attempt should do differently. ")
	b.WriteString("Output only the bullets, nothing else.\n\n")
	b.WriteString("Transcript:\n")
	// Summarization only needs the recent window; full transcripts can
	// exceed the worker's input budget.
	b.WriteString(Tail(transcript, 400))
	return b.String()
}
