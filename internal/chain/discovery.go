package chain

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pablasso/storyrunner/internal/backlog"
)

// unit is the next piece of work discovery selected for the controller.
type unit struct {
	entry     backlog.StoryEntry
	story     *backlog.Story
	resumed   bool
	generated bool
}

// MissingArtifactError aborts a run that needs a story artifact nobody is
// allowed to write: the story is still backlog, generation is disabled,
// and no usable file exists. No worker attempt has run yet, so this is a
// setup failure rather than a review escalation; the story keeps its
// backlog status.
type MissingArtifactError struct {
	Key  backlog.Key
	Path string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("story %s has no usable artifact at %s and generation is disabled", e.Key, e.Path)
}

// discover picks the next story in priority order: anything already
// in-progress is resumed before new work starts, then ready-for-dev,
// then backlog entries, synthesizing their artifacts when missing.
// Returns nil when no runnable story remains.
func (c *Controller) discover(ctx context.Context) (*unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, st := range []backlog.Status{backlog.StatusInProgress, backlog.StatusReadyForDev} {
		for _, entry := range c.ledger.Stories() {
			if entry.Status != st {
				continue
			}
			story, err := c.loadArtifact(entry)
			if err != nil {
				// A promoted story without a readable artifact is a
				// structural failure for that story alone; keep scanning.
				if eerr := c.escalate(entry.Key, CategoryMissingArtifact, err.Error()); eerr != nil {
					return nil, eerr
				}
				continue
			}
			return &unit{entry: entry, story: story, resumed: st == backlog.StatusInProgress}, nil
		}
	}

	for _, entry := range c.ledger.Stories() {
		if entry.Status != backlog.StatusBacklog {
			continue
		}
		if story, err := c.loadArtifact(entry); err == nil {
			// The artifact already exists, authored ahead of time.
			if err := c.ledger.SetStatus(entry.Key.String(), backlog.StatusReadyForDev); err != nil {
				return nil, err
			}
			entry.Status = backlog.StatusReadyForDev
			return &unit{entry: entry, story: story}, nil
		}
		if c.cfg.SkipGeneration {
			// Work is strictly ordered; jumping past this story to a later
			// authored one would reorder the backlog.
			return nil, &MissingArtifactError{Key: entry.Key, Path: c.ws.StoryPath(entry.Key)}
		}

		story, err := c.generate(ctx, entry.Key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			if eerr := c.escalate(entry.Key, CategoryGenerationFailed, err.Error()); eerr != nil {
				return nil, eerr
			}
			continue
		}
		if err := c.ledger.SetStatus(entry.Key.String(), backlog.StatusReadyForDev); err != nil {
			return nil, err
		}
		entry.Status = backlog.StatusReadyForDev
		return &unit{entry: entry, story: story, generated: true}, nil
	}

	return nil, nil
}

// discoverStory prepares an explicitly requested story for single-unit
// mode. The caller has already ruled out terminal states.
func (c *Controller) discoverStory(ctx context.Context, entry backlog.StoryEntry) (*unit, error) {
	switch entry.Status {
	case backlog.StatusBacklog:
		if story, lerr := c.loadArtifact(entry); lerr == nil {
			if err := c.ledger.SetStatus(entry.Key.String(), backlog.StatusReadyForDev); err != nil {
				return nil, err
			}
			entry.Status = backlog.StatusReadyForDev
			return &unit{entry: entry, story: story}, nil
		}
		if c.cfg.SkipGeneration {
			return nil, &MissingArtifactError{Key: entry.Key, Path: c.ws.StoryPath(entry.Key)}
		}
		story, gerr := c.generate(ctx, entry.Key)
		if gerr != nil {
			if ctx.Err() != nil {
				return nil, gerr
			}
			if eerr := c.escalate(entry.Key, CategoryGenerationFailed, gerr.Error()); eerr != nil {
				return nil, eerr
			}
			return nil, errEscalated
		}
		if err := c.ledger.SetStatus(entry.Key.String(), backlog.StatusReadyForDev); err != nil {
			return nil, err
		}
		entry.Status = backlog.StatusReadyForDev
		return &unit{entry: entry, story: story, generated: true}, nil
	default:
		story, lerr := c.loadArtifact(entry)
		if lerr != nil {
			if eerr := c.escalate(entry.Key, CategoryMissingArtifact, lerr.Error()); eerr != nil {
				return nil, eerr
			}
			return nil, errEscalated
		}
		return &unit{entry: entry, story: story, resumed: entry.Status == backlog.StatusInProgress}, nil
	}
}

// loadArtifact loads a story file, distinguishing absence from other
// read failures only in the error text.
func (c *Controller) loadArtifact(entry backlog.StoryEntry) (*backlog.Story, error) {
	story, err := backlog.LoadStory(c.ws, entry.Key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("story artifact %s does not exist", c.ws.StoryPath(entry.Key))
		}
		return nil, err
	}
	return story, nil
}

// generate synthesizes a story artifact through the worker.
func (c *Controller) generate(ctx context.Context, key backlog.Key) (*backlog.Story, error) {
	c.events.OnGenerationStart(key)
	story, err := c.gen.Generate(ctx, c.ws, key)
	c.events.OnGenerationEnd(key, err)
	if err != nil {
		return nil, err
	}
	c.record(c.timeline.StoryGenerated(key.String()))
	return story, nil
}
