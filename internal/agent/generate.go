package agent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pablasso/storyrunner/internal/backlog"
)

const (
	// generateMaxRetries bounds re-asks when the worker returns an
	// artifact whose manifest does not parse.
	generateMaxRetries = 2

	generateInitialInterval = 2 * time.Second
)

// Generator produces a story artifact for a backlog entry that has none
// yet, using the worker as author and the manifest parser as acceptance.
type Generator struct {
	invoker Invoker
}

// NewGenerator creates a Generator backed by the given invoker.
func NewGenerator(inv Invoker) *Generator {
	return &Generator{invoker: inv}
}

// Generate asks the worker to author the artifact for key, validates that
// the result carries a parseable task manifest, and writes it into the
// workspace. Malformed responses are retried with backoff; a manifest
// that still does not parse after the last retry fails the generation.
func (g *Generator) Generate(ctx context.Context, ws *backlog.Workspace, key backlog.Key) (*backlog.Story, error) {
	prompt := buildGeneratePrompt(ws, key)

	var content string
	op := func() error {
		out, err := g.invoker.Invoke(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		candidate := extractMarkdown(out)
		if _, err := backlog.ParseManifest(candidate); err != nil {
			return fmt.Errorf("generated story for %s: %w", key, err)
		}
		content = candidate
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = generateInitialInterval
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, generateMaxRetries), ctx)); err != nil {
		return nil, fmt.Errorf("story generation failed for %s: %w", key, err)
	}
	return backlog.WriteStory(ws, key, content)
}

func buildGeneratePrompt(ws *backlog.Workspace, key backlog.Key) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the story file for story %s of this project.\n\n", key)

	if epic, err := os.ReadFile(ws.EpicPath(key.Epic)); err == nil {
		fmt.Fprintf(&b, "Epic context:\n%s\n\n", strings.TrimSpace(string(epic)))
	}

	b.WriteString("Output only the markdown document, in exactly this shape:\n")
	b.WriteString("- a single '# <title>' heading\n")
	b.WriteString("- a '## Acceptance Criteria' section with bullets\n")
	b.WriteString("- a '## Tasks' section containing one fenced json block: an array of task objects\n\n")
	b.WriteString("Each task object has these fields:\n")
	b.WriteString("  \"id\" (integer, sequential from 1),\n")
	b.WriteString("  \"title\" (string),\n")
	b.WriteString("  \"acceptanceCriteria\" (array of strings),\n")
	b.WriteString("  \"steps\" (array of strings),\n")
	b.WriteString("  \"checkCommands\" (array of shell command strings, may be empty),\n")
	b.WriteString("  \"passes\" (boolean, always false)\n\n")
	b.WriteString("Scope tasks so each is completable in a single focused coding session. ")
	b.WriteString("Order them so every task builds only on earlier ones. ")
	b.WriteString("Do not include any text before or after the document.\n")
	return b.String()
}

// extractMarkdown strips a whole-document code fence if the worker
// wrapped its answer in one.
func extractMarkdown(out string) string {
	s := strings.TrimSpace(out)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 || !strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		return s
	}
	return strings.Join(lines[1:len(lines)-1], "\n")
}
