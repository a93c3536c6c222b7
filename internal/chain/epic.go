package chain

import (
	"context"
	"fmt"

	"github.com/pablasso/storyrunner/internal/backlog"
)

// checkEpic runs after a story reaches done. When every sibling story is
// done it validates the epic as a whole and promotes or demotes its row.
// Epic failures are recorded and reported but never stop the pipeline.
func (c *Controller) checkEpic(ctx context.Context, epic int) error {
	stories := c.ledger.EpicStories(epic)
	if len(stories) == 0 {
		return nil
	}
	for _, s := range stories {
		if s.Status != backlog.StatusDone {
			return nil
		}
	}
	if c.ledger.EpicStatus(epic) == backlog.StatusDone {
		return nil
	}

	key := backlog.EpicKey(epic)
	c.log.Info("all stories done, validating epic", "epic", key)

	if c.cfg.SkipValidation {
		return c.promoteEpic(epic, key)
	}

	res, err := c.validation.RunEpic(ctx, c.ws, epic)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return c.failEpic(epic, key, err.Error())
	}
	if !res.Passed {
		reason := fmt.Sprintf("%s exited %d", res.Failed.Command, res.Failed.ExitCode)
		return c.failEpic(epic, key, reason)
	}
	return c.promoteEpic(epic, key)
}

func (c *Controller) promoteEpic(epic int, key string) error {
	if err := c.ledger.SetStatus(key, backlog.StatusDone); err != nil {
		return err
	}
	c.record(c.timeline.EpicDone(epic))
	c.events.OnEpicDone(epic)
	c.log.Info("epic done", "epic", key)
	return nil
}

func (c *Controller) failEpic(epic int, key, reason string) error {
	if err := c.ledger.SetStatus(key, backlog.StatusReview); err != nil {
		return err
	}
	c.record(c.timeline.EpicFailed(epic, reason))
	c.events.OnEpicFailed(epic, reason)
	c.log.Warn("epic validation failed", "epic", key, "reason", reason)
	return nil
}
