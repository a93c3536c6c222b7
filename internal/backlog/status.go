package backlog

import "fmt"

// Status is a story or epic lifecycle state as recorded in the ledger.
type Status string

// Lifecycle states. Review is a dead end that requires a human to clear;
// done is terminal.
const (
	StatusBacklog     Status = "backlog"
	StatusReadyForDev Status = "ready-for-dev"
	StatusInProgress  Status = "in-progress"
	StatusDone        Status = "done"
	StatusReview      Status = "review"
)

// ParseStatus validates a raw ledger value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusBacklog, StatusReadyForDev, StatusInProgress, StatusDone, StatusReview:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Terminal reports whether no automatic transition leaves this state.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusReview
}

// transitions lists the legal moves the pipeline may perform. Review is
// reachable from every non-terminal state: structural failures escalate
// a story wherever it currently stands.
var transitions = map[Status][]Status{
	StatusBacklog:     {StatusReadyForDev, StatusReview},
	StatusReadyForDev: {StatusInProgress, StatusReview},
	StatusInProgress:  {StatusDone, StatusReview},
}

// ValidateTransition returns an error when moving from one state to another
// is not allowed. Setting a key to its current value is always allowed; the
// ledger write is a no-op in that case.
func ValidateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s", from, to)
}
