package chain

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pablasso/storyrunner/internal/backlog"
)

// writeReport regenerates the progress report from the ledger. It is
// called on every transition and task completion rather than on a timer,
// so the report is exactly as fresh as the state it summarizes.
func (c *Controller) writeReport(current string) {
	content := renderReport(c.ws, c.ledger, c.runID, current, time.Since(c.start))
	if err := atomicWrite(c.ws.ReportPath(), content); err != nil {
		c.log.Warn("failed to write progress report", "error", err.Error())
	}
}

func renderReport(ws *backlog.Workspace, ledger *backlog.Ledger, runID, current string, elapsed time.Duration) string {
	var b strings.Builder

	b.WriteString("# Progress Report\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", runID)
	fmt.Fprintf(&b, "- Updated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Elapsed: %s\n", elapsed.Round(time.Second))
	if current != "" {
		fmt.Fprintf(&b, "- Current story: `%s`\n", current)
	}
	b.WriteString("\n")

	var done, total int
	for _, e := range ledger.Stories() {
		total++
		if e.Status == backlog.StatusDone {
			done++
		}
	}
	fmt.Fprintf(&b, "%d of %d stories done.\n", done, total)

	for _, epic := range ledger.Epics() {
		fmt.Fprintf(&b, "\n## Epic %d (%s)\n\n", epic, ledger.EpicStatus(epic))
		b.WriteString("| Story | Status | Tasks |\n")
		b.WriteString("|-------|--------|-------|\n")
		for _, e := range ledger.EpicStories(epic) {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", e.Key, e.Status, backlog.TaskCounts(ws, e.Key))
		}
	}

	return b.String()
}

func atomicWrite(path, content string) error {
	tmpPath := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmpPath, []byte(content), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
