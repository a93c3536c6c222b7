package agent

import "strings"

// Markers are the worker's only structured channel back to the
// orchestrator. Everything else in a transcript is free text.
const (
	// TaskCompleteMarker is emitted by the worker when it believes the
	// current task is done and the story file reflects it.
	TaskCompleteMarker = "###TASK_COMPLETE###"

	// ReviewPassSignal means the reviewer found no substantive issues.
	ReviewPassSignal = "###REVIEW_PASS###"
	// ReviewFixedSignal means the reviewer found issues and fixed them.
	ReviewFixedSignal = "###REVIEW_FIXED###"
	// ReviewBlockedSignal means the reviewer found issues it could not fix.
	ReviewBlockedSignal = "###REVIEW_BLOCKED###"
)

// ContainsMarker reports whether the transcript contains the given
// literal marker anywhere.
func ContainsMarker(transcript, marker string) bool {
	return strings.Contains(transcript, marker)
}

// FindReviewSignal scans a review transcript for the tri-state verdict.
// When more than one signal appears the last occurrence wins, since the
// reviewer may quote earlier output before giving its final word. Returns
// "" when no signal is present.
func FindReviewSignal(transcript string) string {
	best := ""
	bestIdx := -1
	for _, sig := range []string{ReviewPassSignal, ReviewFixedSignal, ReviewBlockedSignal} {
		if idx := strings.LastIndex(transcript, sig); idx > bestIdx {
			best = sig
			bestIdx = idx
		}
	}
	return best
}

// Tail returns the last n lines of a transcript, used when a failure
// summary has to fall back to raw output.
func Tail(transcript string, n int) string {
	lines := strings.Split(strings.TrimRight(transcript, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
