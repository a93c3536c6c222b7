package chain

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const timelineFileName = "timeline.jsonl"

// Event type constants for the run timeline.
const (
	EventRunStarted       = "run_started"
	EventRunFinished      = "run_finished"
	EventStorySelected    = "story_selected"
	EventStoryGenerated   = "story_generated"
	EventStoryStarted     = "story_started"
	EventStoryDone        = "story_done"
	EventStoryEscalated   = "story_escalated"
	EventTaskPassed       = "task_passed"
	EventAttemptFinished  = "attempt_finished"
	EventValidationPassed = "validation_passed"
	EventValidationFailed = "validation_failed"
	EventReviewVerdict    = "review_verdict"
	EventEpicDone         = "epic_done"
	EventEpicFailed       = "epic_failed"
)

// TimelineEvent represents a single timeline entry.
type TimelineEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	Event     string                 `json:"event"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Timeline writes run events to a JSON Lines file. It is the durable
// record of every decision the pipeline made, including which error
// category fired on each escalation.
type Timeline struct {
	path string
}

// NewTimeline creates a timeline for the given run directory.
func NewTimeline(runDir string) *Timeline {
	return &Timeline{
		path: filepath.Join(runDir, timelineFileName),
	}
}

// Log appends a timeline event.
func (t *Timeline) Log(event string, data map[string]interface{}) error {
	entry := TimelineEvent{
		Timestamp: time.Now(),
		Event:     event,
		Data:      data,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	jsonBytes = append(jsonBytes, '\n')

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(jsonBytes)
	return err
}

// RunStarted logs a run_started event.
func (t *Timeline) RunStarted(runID string, chainMode bool) error {
	return t.Log(EventRunStarted, map[string]interface{}{
		"run_id": runID,
		"chain":  chainMode,
	})
}

// StorySelected logs a story_selected event.
func (t *Timeline) StorySelected(key string, resumed bool) error {
	return t.Log(EventStorySelected, map[string]interface{}{
		"story":   key,
		"resumed": resumed,
	})
}

// StoryGenerated logs a story_generated event.
func (t *Timeline) StoryGenerated(key string) error {
	return t.Log(EventStoryGenerated, map[string]interface{}{
		"story": key,
	})
}

// StoryStarted logs a story_started event.
func (t *Timeline) StoryStarted(key string, completed, total int) error {
	return t.Log(EventStoryStarted, map[string]interface{}{
		"story":     key,
		"completed": completed,
		"total":     total,
	})
}

// AttemptFinished logs an attempt_finished event.
func (t *Timeline) AttemptFinished(key string, taskID, attempt int, outcome string, elapsed time.Duration) error {
	return t.Log(EventAttemptFinished, map[string]interface{}{
		"story":       key,
		"task_id":     taskID,
		"attempt":     attempt,
		"outcome":     outcome,
		"duration_ms": elapsed.Milliseconds(),
	})
}

// TaskPassed logs a task_passed event.
func (t *Timeline) TaskPassed(key string, taskID int, rescued bool) error {
	return t.Log(EventTaskPassed, map[string]interface{}{
		"story":   key,
		"task_id": taskID,
		"rescued": rescued,
	})
}

// ValidationPassed logs a validation_passed event.
func (t *Timeline) ValidationPassed(key string, commands int) error {
	return t.Log(EventValidationPassed, map[string]interface{}{
		"story":    key,
		"commands": commands,
	})
}

// ValidationFailed logs a validation_failed event.
func (t *Timeline) ValidationFailed(key, command string, exitCode int) error {
	return t.Log(EventValidationFailed, map[string]interface{}{
		"story":     key,
		"command":   command,
		"exit_code": exitCode,
	})
}

// ReviewVerdict logs a review_verdict event.
func (t *Timeline) ReviewVerdict(key, verdict string, iterations int) error {
	return t.Log(EventReviewVerdict, map[string]interface{}{
		"story":      key,
		"verdict":    verdict,
		"iterations": iterations,
	})
}

// StoryDone logs a story_done event.
func (t *Timeline) StoryDone(key string, attempts int, elapsed time.Duration) error {
	return t.Log(EventStoryDone, map[string]interface{}{
		"story":       key,
		"attempts":    attempts,
		"duration_ms": elapsed.Milliseconds(),
	})
}

// StoryEscalated logs a story_escalated event with the error category
// that fired.
func (t *Timeline) StoryEscalated(key, category, reason string) error {
	return t.Log(EventStoryEscalated, map[string]interface{}{
		"story":    key,
		"category": category,
		"reason":   reason,
	})
}

// EpicDone logs an epic_done event.
func (t *Timeline) EpicDone(epic int) error {
	return t.Log(EventEpicDone, map[string]interface{}{
		"epic": epic,
	})
}

// EpicFailed logs an epic_failed event.
func (t *Timeline) EpicFailed(epic int, reason string) error {
	return t.Log(EventEpicFailed, map[string]interface{}{
		"epic":   epic,
		"reason": reason,
	})
}

// RunFinished logs a run_finished event with summary statistics.
func (t *Timeline) RunFinished(storiesDone, storiesEscalated int, duration time.Duration) error {
	return t.Log(EventRunFinished, map[string]interface{}{
		"stories_done":      storiesDone,
		"stories_escalated": storiesEscalated,
		"duration_ms":       duration.Milliseconds(),
	})
}
