package backlog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const validationHeading = "## Validation"

// Story is a loaded story artifact. The ledger owns its status; the
// artifact owns task content and validation commands.
type Story struct {
	Key     Key
	Path    string
	Content string
}

// LoadStory reads a story artifact from the workspace.
func LoadStory(ws *Workspace, key Key) (*Story, error) {
	path := ws.StoryPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read story %s: %w", key, err)
	}
	return &Story{Key: key, Path: path, Content: string(data)}, nil
}

// Title returns the first level-1 heading, or the key when none exists.
func (s *Story) Title() string {
	for _, line := range strings.Split(s.Content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}
	return s.Key.String()
}

// Manifest parses the task manifest from the artifact.
func (s *Story) Manifest() (*Manifest, error) {
	return ParseManifest(s.Content)
}

// AcceptanceCriteria returns the raw text of the acceptance criteria
// section, empty when the story has none.
func (s *Story) AcceptanceCriteria() string {
	start, end, ok := sectionBounds(s.Content, "## Acceptance Criteria")
	if !ok {
		return ""
	}
	return strings.TrimSpace(s.Content[start:end])
}

// ValidationCommands returns the story-declared commands from the
// "## Validation" section: a YAML string list, fenced or bare. Stories
// without the section declare no extra validation.
func (s *Story) ValidationCommands() ([]string, error) {
	return validationCommands(s.Content)
}

// MarkTaskPassed flips one task's passes flag in place and writes the
// artifact atomically.
func (s *Story) MarkTaskPassed(taskID int) error {
	m, err := s.Manifest()
	if err != nil {
		return err
	}
	idx := -1
	for i, t := range m.Tasks {
		if t.ID == taskID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("task %d not found in %s", taskID, s.Key)
	}

	updated, err := m.markPassed(s.Content, idx)
	if err != nil {
		return err
	}
	if updated == s.Content {
		return nil
	}
	if err := s.save(updated); err != nil {
		return err
	}
	s.Content = updated
	return nil
}

// WriteStory creates or replaces a story artifact with the given content,
// creating the stories directory on first use.
func WriteStory(ws *Workspace, key Key, content string) (*Story, error) {
	if err := os.MkdirAll(ws.StoriesDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create stories directory: %w", err)
	}
	s := &Story{Key: key, Path: ws.StoryPath(key), Content: content}
	if err := s.save(content); err != nil {
		return nil, err
	}
	return s, nil
}

// TaskCounts summarizes a story's task progress as "done/total" for
// display, naming the problem instead when the artifact is missing or
// its manifest is unreadable.
func TaskCounts(ws *Workspace, key Key) string {
	story, err := LoadStory(ws, key)
	if err != nil {
		return "no artifact"
	}
	m, err := story.Manifest()
	if err != nil {
		return "malformed"
	}
	done, total := m.Counts()
	return fmt.Sprintf("%d/%d", done, total)
}

// Reload re-reads the artifact from disk. The worker edits the file during
// attempts, so the in-memory copy goes stale after every attempt.
func (s *Story) Reload() error {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return fmt.Errorf("failed to reload story %s: %w", s.Key, err)
	}
	s.Content = string(data)
	return nil
}

func (s *Story) save(content string) error {
	tmpPath := fmt.Sprintf("%s.tmp.%d", s.Path, os.Getpid())
	if err := os.WriteFile(tmpPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write temp story: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp story: %w", err)
	}
	return nil
}

// EpicValidationCommands reads the optional epic artifact and returns its
// validation commands. A missing artifact or section means none.
func EpicValidationCommands(ws *Workspace, epic int) ([]string, error) {
	data, err := os.ReadFile(ws.EpicPath(epic))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read epic artifact: %w", err)
	}
	return validationCommands(string(data))
}

func validationCommands(content string) ([]string, error) {
	start, end, ok := sectionBounds(content, validationHeading)
	if !ok {
		return nil, nil
	}
	section := content[start:end]
	if fs, fe, ok := fencedBounds(section); ok {
		section = section[fs:fe]
	}

	var cmds []string
	if err := yaml.Unmarshal([]byte(section), &cmds); err != nil {
		return nil, fmt.Errorf("invalid validation commands: %w", err)
	}
	out := cmds[:0]
	for _, c := range cmds {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out, nil
}
