package backlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedManifest marks a task manifest that cannot be trusted. It is
// fatal for the story and never retried.
var ErrMalformedManifest = errors.New("malformed task manifest")

const tasksHeading = "## Tasks"

// Task is one entry of a story's ordered task manifest.
type Task struct {
	ID                 int      `json:"id"`
	Title              string   `json:"title"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	Steps              []string `json:"steps"`
	CheckCommands      []string `json:"checkCommands"`
	Passes             bool     `json:"passes"`
}

// Manifest is a parsed task list plus the byte range it occupies in the
// story artifact, kept so that passes flags can be flipped in place without
// reformatting the author's JSON.
type Manifest struct {
	Tasks []Task

	blockStart int
	blockEnd   int
}

var passesRe = regexp.MustCompile(`"passes"\s*:\s*(true|false)`)

// ParseManifest extracts the task manifest from story artifact content: a
// JSON array under the "## Tasks" heading, optionally inside a ```json
// fence.
func ParseManifest(content string) (*Manifest, error) {
	start, end, err := manifestBounds(content)
	if err != nil {
		return nil, err
	}
	block := content[start:end]

	var tasks []Task
	if err := json.Unmarshal([]byte(block), &tasks); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: empty task list", ErrMalformedManifest)
	}
	for i, t := range tasks {
		if t.ID != i+1 {
			return nil, fmt.Errorf("%w: task %d has id %d (ids must be sequential from 1)", ErrMalformedManifest, i+1, t.ID)
		}
		if strings.TrimSpace(t.Title) == "" {
			return nil, fmt.Errorf("%w: task %d missing title", ErrMalformedManifest, t.ID)
		}
	}

	// The in-place flip below relies on one passes token per task, in array
	// order. Verify that now rather than corrupting the file later.
	if n := len(passesRe.FindAllString(block, -1)); n != len(tasks) {
		return nil, fmt.Errorf("%w: found %d passes fields for %d tasks", ErrMalformedManifest, n, len(tasks))
	}

	return &Manifest{Tasks: tasks, blockStart: start, blockEnd: end}, nil
}

// manifestBounds locates the JSON array for the task manifest and returns
// its byte offsets within content.
func manifestBounds(content string) (int, int, error) {
	secStart, secEnd, ok := sectionBounds(content, tasksHeading)
	if !ok {
		return 0, 0, fmt.Errorf("%w: no %q section", ErrMalformedManifest, tasksHeading)
	}
	section := content[secStart:secEnd]

	// Prefer a fenced block; fall back to bare array boundaries.
	if fs, fe, ok := fencedBounds(section); ok {
		return secStart + fs, secStart + fe, nil
	}

	open := strings.Index(section, "[")
	close := strings.LastIndex(section, "]")
	if open == -1 || close == -1 || open >= close {
		return 0, 0, fmt.Errorf("%w: no JSON array under %q", ErrMalformedManifest, tasksHeading)
	}
	return secStart + open, secStart + close + 1, nil
}

// sectionBounds returns the content range between a heading line and the
// next "## " heading (or EOF).
func sectionBounds(content, heading string) (int, int, bool) {
	lines := strings.SplitAfter(content, "\n")
	offset := 0
	start := -1
	for _, line := range lines {
		trimmed := strings.TrimRight(line, "\n")
		if start == -1 {
			if strings.TrimSpace(trimmed) == heading {
				start = offset + len(line)
			}
		} else if strings.HasPrefix(trimmed, "## ") {
			return start, offset, true
		}
		offset += len(line)
	}
	if start == -1 {
		return 0, 0, false
	}
	return start, len(content), true
}

// fencedBounds returns the inner range of the first ``` fence in s.
func fencedBounds(s string) (int, int, bool) {
	open := strings.Index(s, "```")
	if open == -1 {
		return 0, 0, false
	}
	nl := strings.Index(s[open:], "\n")
	if nl == -1 {
		return 0, 0, false
	}
	inner := open + nl + 1
	closeRel := strings.Index(s[inner:], "```")
	if closeRel == -1 {
		return 0, 0, false
	}
	return inner, inner + closeRel, true
}

// Done reports whether every task passes.
func (m *Manifest) Done() bool {
	for _, t := range m.Tasks {
		if !t.Passes {
			return false
		}
	}
	return true
}

// NextTask returns the first task with passes=false. Tasks are consumed
// strictly in list order.
func (m *Manifest) NextTask() (Task, bool) {
	for _, t := range m.Tasks {
		if !t.Passes {
			return t, true
		}
	}
	return Task{}, false
}

// Counts returns (completed, total).
func (m *Manifest) Counts() (int, int) {
	done := 0
	for _, t := range m.Tasks {
		if t.Passes {
			done++
		}
	}
	return done, len(m.Tasks)
}

// markPassed flips the passes token for the task at index idx inside
// content and returns the updated content. Only that one token changes;
// passes is monotonic so true stays true.
func (m *Manifest) markPassed(content string, idx int) (string, error) {
	if idx < 0 || idx >= len(m.Tasks) {
		return "", fmt.Errorf("task index %d out of range", idx)
	}
	block := content[m.blockStart:m.blockEnd]
	locs := passesRe.FindAllStringSubmatchIndex(block, -1)
	if idx >= len(locs) {
		return "", fmt.Errorf("%w: passes field for task %d not found", ErrMalformedManifest, m.Tasks[idx].ID)
	}
	vs, ve := locs[idx][2], locs[idx][3]
	if block[vs:ve] == "true" {
		return content, nil
	}
	updated := block[:vs] + "true" + block[ve:]
	return content[:m.blockStart] + updated + content[m.blockEnd:], nil
}
