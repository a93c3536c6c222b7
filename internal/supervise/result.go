// Package supervise runs a single worker attempt under wall-clock and
// stall supervision. It decides only whether the attempt lived or died
// and how; what that means for the task is the caller's business.
package supervise

import (
	"io"
	"time"
)

// Outcome classifies how an attempt ended.
type Outcome string

const (
	// OutcomePassed means the worker exited cleanly and, when a marker
	// was required, emitted it.
	OutcomePassed Outcome = "passed"
	// OutcomeFailed means the worker exited with an error, or cleanly
	// without the required marker.
	OutcomeFailed Outcome = "failed"
	// OutcomeTimeout means the attempt hit the iteration budget and was
	// killed.
	OutcomeTimeout Outcome = "timeout"
	// OutcomeStalled means the attempt showed no observable progress for
	// the stall window and was killed.
	OutcomeStalled Outcome = "stalled"
)

// Attempt describes one supervised worker invocation.
type Attempt struct {
	// Objective is the full prompt handed to the worker.
	Objective string
	// TranscriptPath is where the worker's combined output is captured.
	TranscriptPath string
	// Marker, when non-empty, must appear in the transcript for a clean
	// exit to count as passed.
	Marker string
	// Output, when non-nil, additionally receives the live transcript
	// stream.
	Output io.Writer
}

// Result is the supervisor's verdict on one attempt.
type Result struct {
	Outcome    Outcome
	Reason     string
	Transcript string
	Elapsed    time.Duration
}
