package backlog

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	storyKeyRe = regexp.MustCompile(`^(\d+)-(\d+)-([A-Za-z0-9][A-Za-z0-9-]*)$`)
	epicKeyRe  = regexp.MustCompile(`^epic-(\d+)$`)
)

// Key identifies a story: epic number, story number, and a kebab-case slug.
// The raw form is what appears in the ledger and in story filenames,
// e.g. "3-2-user-auth".
type Key struct {
	Epic  int
	Story int
	Slug  string
}

// ParseKey parses a full story key.
func ParseKey(raw string) (Key, error) {
	m := storyKeyRe.FindStringSubmatch(raw)
	if m == nil {
		return Key{}, fmt.Errorf("invalid story key %q (want <epic>-<story>-<slug>)", raw)
	}
	epic, _ := strconv.Atoi(m[1])
	story, _ := strconv.Atoi(m[2])
	return Key{Epic: epic, Story: story, Slug: m[3]}, nil
}

// IsStoryKey reports whether a ledger key names a story.
func IsStoryKey(raw string) bool {
	return storyKeyRe.MatchString(raw)
}

// IsEpicKey reports whether a ledger key names an epic.
func IsEpicKey(raw string) bool {
	return epicKeyRe.MatchString(raw)
}

// EpicNumber extracts the number from an epic key like "epic-3".
func EpicNumber(raw string) (int, bool) {
	m := epicKeyRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	n, _ := strconv.Atoi(m[1])
	return n, true
}

// EpicKey builds the ledger key for an epic number.
func EpicKey(epic int) string {
	return fmt.Sprintf("epic-%d", epic)
}

// String returns the raw ledger form of the key.
func (k Key) String() string {
	return fmt.Sprintf("%d-%d-%s", k.Epic, k.Story, k.Slug)
}

// Number returns the numeric prefix, e.g. "3-2".
func (k Key) Number() string {
	return fmt.Sprintf("%d-%d", k.Epic, k.Story)
}
