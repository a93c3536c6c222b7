package chain

import (
	"time"

	"github.com/pablasso/storyrunner/internal/backlog"
	"github.com/pablasso/storyrunner/internal/executor"
	"github.com/pablasso/storyrunner/internal/gate"
)

// Events receives pipeline-level callbacks on top of the task-level ones.
// Implement this interface in the TUI or console to follow a run live.
type Events interface {
	executor.Events
	gate.ReviewEvents

	// OnRunStart is called once when the controller begins
	OnRunStart(runID string, chainMode bool)

	// OnStorySelected is called when discovery picks the next unit
	OnStorySelected(key backlog.Key, title string, resumed bool)

	// OnGenerationStart is called before synthesizing a missing artifact
	OnGenerationStart(key backlog.Key)

	// OnGenerationEnd is called with the generation result
	OnGenerationEnd(key backlog.Key, err error)

	// OnValidationStart is called before the validation gate runs
	OnValidationStart()

	// OnValidationEnd is called with the gate result
	OnValidationEnd(result *gate.ValidationResult)

	// OnStoryDone is called when a story reaches done
	OnStoryDone(key backlog.Key, elapsed time.Duration)

	// OnStoryEscalated is called when a story is routed to review
	OnStoryEscalated(key backlog.Key, category, reason string)

	// OnEpicDone is called when an epic is promoted
	OnEpicDone(epic int)

	// OnEpicFailed is called when epic validation fails
	OnEpicFailed(epic int, reason string)

	// OnRunEnd is called once with the final summary
	OnRunEnd(summary *Summary)
}

// NopEvents discards all callbacks.
type NopEvents struct {
	executor.NopEvents
}

func (NopEvents) OnReviewStart(int, int)                       {}
func (NopEvents) OnReviewEnd(int, string)                      {}
func (NopEvents) OnRunStart(string, bool)                      {}
func (NopEvents) OnStorySelected(backlog.Key, string, bool)    {}
func (NopEvents) OnGenerationStart(backlog.Key)                {}
func (NopEvents) OnGenerationEnd(backlog.Key, error)           {}
func (NopEvents) OnValidationStart()                           {}
func (NopEvents) OnValidationEnd(*gate.ValidationResult)       {}
func (NopEvents) OnStoryDone(backlog.Key, time.Duration)       {}
func (NopEvents) OnStoryEscalated(backlog.Key, string, string) {}
func (NopEvents) OnEpicDone(int)                               {}
func (NopEvents) OnEpicFailed(int, string)                     {}
func (NopEvents) OnRunEnd(*Summary)                            {}
