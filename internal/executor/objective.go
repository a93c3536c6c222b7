package executor

import (
	"fmt"
	"strings"

	"github.com/pablasso/storyrunner/internal/agent"
	"github.com/pablasso/storyrunner/internal/backlog"
)

// buildObjective composes the full prompt for one task attempt. The
// worker gets the task, its place in the story, and the contract for
// reporting completion; retries additionally carry the failure learning
// from the previous attempt.
func buildObjective(story *backlog.Story, task backlog.Task, completed, total int, learning string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are implementing story %s: %s\n", story.Key, story.Title())
	fmt.Fprintf(&b, "Current task (%d of %d): %s\n\n", task.ID, total, task.Title)

	if len(task.AcceptanceCriteria) > 0 {
		b.WriteString("Acceptance criteria for this task:\n")
		for _, ac := range task.AcceptanceCriteria {
			fmt.Fprintf(&b, "- %s\n", ac)
		}
		b.WriteString("\n")
	}

	if len(task.Steps) > 0 {
		b.WriteString("Implementation steps:\n")
		for i, step := range task.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
		b.WriteString("\n")
	}

	if len(task.CheckCommands) > 0 {
		b.WriteString("Your work will be verified with these commands, all of which must exit 0:\n")
		for _, cmd := range task.CheckCommands {
			fmt.Fprintf(&b, "- %s\n", cmd)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "The full story file is at %s. Read it for surrounding context, ", story.Path)
	fmt.Fprintf(&b, "including the %d task(s) already completed.\n\n", completed)

	if learning != "" {
		b.WriteString("A previous attempt at this task failed. Do not repeat the same approach. ")
		b.WriteString("What went wrong last time:\n")
		b.WriteString(learning)
		b.WriteString("\n\n")
	}

	b.WriteString("Rules:\n")
	b.WriteString("- Implement ONLY this task. Do not start later tasks.\n")
	fmt.Fprintf(&b, "- When the task is fully implemented, edit the story file's Tasks JSON and set \"passes\": true for task id %d. ", task.ID)
	b.WriteString("Change nothing else in that file and keep its formatting intact.\n")
	fmt.Fprintf(&b, "- Then print %s on its own line as the last thing you output.\n", agent.TaskCompleteMarker)
	fmt.Fprintf(&b, "- Never print %s unless both of the above are done.\n", agent.TaskCompleteMarker)

	return b.String()
}
