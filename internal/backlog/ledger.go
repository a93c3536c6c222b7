package backlog

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Ledger is the flat status file mapping story and epic keys to lifecycle
// states. It is the single source of truth for what is done. Reads parse the
// whole document; writes rewrite exactly one line so comments, ordering, and
// unknown keys survive untouched.
type Ledger struct {
	path   string
	lines  []string
	values map[string]string
	order  []string
}

// OpenLedger reads and parses the ledger file.
func OpenLedger(path string) (*Ledger, error) {
	l := &Ledger{path: path}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload re-reads the ledger from disk.
func (l *Ledger) Reload() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	// Full-document parse catches YAML-level corruption early and gives us
	// the value map; line layout is kept separately for surgical writes.
	var doc map[string]string
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse ledger %s: %w", l.path, err)
	}

	l.lines = strings.Split(string(data), "\n")
	l.values = doc
	if l.values == nil {
		l.values = map[string]string{}
	}

	l.order = l.order[:0]
	for _, line := range l.lines {
		key, _, ok := splitEntry(line)
		if ok {
			l.order = append(l.order, key)
		}
	}
	return nil
}

// splitEntry parses one "key: value" ledger line. Comments and blanks
// return ok=false.
func splitEntry(line string) (key, value string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	idx := strings.Index(trimmed, ":")
	if idx <= 0 {
		return "", "", false
	}
	key = strings.TrimSpace(trimmed[:idx])
	value = strings.TrimSpace(trimmed[idx+1:])
	// Strip a trailing inline comment.
	if ci := strings.Index(value, " #"); ci >= 0 {
		value = strings.TrimSpace(value[:ci])
	}
	return key, value, true
}

// Status returns the recorded state for a key.
func (l *Ledger) Status(key string) (Status, bool) {
	raw, ok := l.values[key]
	if !ok {
		return "", false
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return "", false
	}
	return st, true
}

// SetStatus transitions a key to a new state and persists the change.
// Existing keys are validated against the lifecycle transition table;
// unknown keys are appended (used when an epic first gets a recorded state).
// Setting a key to its current value leaves the file untouched.
func (l *Ledger) SetStatus(key string, to Status) error {
	if raw, ok := l.values[key]; ok {
		from, err := ParseStatus(raw)
		if err != nil {
			return fmt.Errorf("ledger key %s has unrecognized value %q", key, raw)
		}
		if from == to {
			return nil
		}
		// Story transitions follow the lifecycle table. Epic rows are
		// written only by the completion checker, which enforces the
		// all-stories-done invariant itself and may re-promote an epic
		// out of review after a human clears it.
		if IsStoryKey(key) {
			if err := ValidateTransition(from, to); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	return l.write(key, string(to))
}

// write replaces the single line holding key, or appends one. The rest of
// the file is preserved verbatim.
func (l *Ledger) write(key, value string) error {
	keyRe := regexp.MustCompile(`^(\s*)` + regexp.QuoteMeta(key) + `\s*:`)

	replaced := false
	lines := make([]string, len(l.lines))
	copy(lines, l.lines)
	for i, line := range lines {
		m := keyRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lines[i] = fmt.Sprintf("%s%s: %s", m[1], key, value)
		replaced = true
		break
	}

	if !replaced {
		// Append before a trailing blank line if the file ends with one.
		if n := len(lines); n > 0 && lines[n-1] == "" {
			lines = append(lines[:n-1], fmt.Sprintf("%s: %s", key, value), "")
		} else {
			lines = append(lines, fmt.Sprintf("%s: %s", key, value))
		}
	}

	if err := l.save(strings.Join(lines, "\n")); err != nil {
		return err
	}

	l.lines = lines
	l.values[key] = value
	if !replaced {
		l.order = append(l.order, key)
	}
	return nil
}

// save writes the ledger atomically via a temp file and rename.
func (l *Ledger) save(content string) error {
	tmpPath := fmt.Sprintf("%s.tmp.%d", l.path, os.Getpid())
	if err := os.WriteFile(tmpPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write temp ledger: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp ledger: %w", err)
	}
	return nil
}

// StoryEntry is one story row from the ledger.
type StoryEntry struct {
	Key    Key
	Status Status
}

// Stories returns all story entries in file order.
func (l *Ledger) Stories() []StoryEntry {
	var out []StoryEntry
	for _, raw := range l.order {
		if !IsStoryKey(raw) {
			continue
		}
		key, err := ParseKey(raw)
		if err != nil {
			continue
		}
		st, ok := l.Status(raw)
		if !ok {
			continue
		}
		out = append(out, StoryEntry{Key: key, Status: st})
	}
	return out
}

// EpicStories returns the stories belonging to one epic, ordered by story
// number.
func (l *Ledger) EpicStories(epic int) []StoryEntry {
	var out []StoryEntry
	for _, e := range l.Stories() {
		if e.Key.Epic == epic {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Story < out[j].Key.Story })
	return out
}

// Epics returns epic numbers present in the ledger, either as explicit
// epic keys or implied by story keys, in ascending order.
func (l *Ledger) Epics() []int {
	seen := map[int]bool{}
	for _, raw := range l.order {
		if n, ok := EpicNumber(raw); ok {
			seen[n] = true
		}
	}
	for _, e := range l.Stories() {
		seen[e.Key.Epic] = true
	}
	nums := make([]int, 0, len(seen))
	for n := range seen {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// EpicStatus returns the recorded state for an epic key, defaulting to
// in-progress when the epic has no explicit row yet.
func (l *Ledger) EpicStatus(epic int) Status {
	if st, ok := l.Status(EpicKey(epic)); ok {
		return st
	}
	return StatusInProgress
}

// ResolveStory matches a user-supplied identifier against ledger story keys.
// Accepts a full key ("3-2-user-auth") or the numeric prefix ("3-2").
func (l *Ledger) ResolveStory(ident string) (StoryEntry, error) {
	var matches []StoryEntry
	for _, e := range l.Stories() {
		if e.Key.String() == ident || e.Key.Number() == ident {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return StoryEntry{}, fmt.Errorf("story %q not found in ledger", ident)
	case 1:
		return matches[0], nil
	default:
		return StoryEntry{}, fmt.Errorf("story %q is ambiguous (%d matches)", ident, len(matches))
	}
}
