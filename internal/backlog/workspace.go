package backlog

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	stateDir       = ".storyrunner"
	storiesDir     = "stories"
	epicsDir       = "epics"
	runsDir        = "runs"
	ledgerFileName = "status.yaml"
	reportFileName = "report.md"
	configFileName = "config.yaml"
	lockFileName   = "run.lock"
)

// Workspace locates the on-disk state layout inside a driven project.
type Workspace struct {
	Root string
}

// starterLedger seeds a fresh workspace with a commented, empty ledger.
const starterLedger = `# Story ledger. One line per story: <epic>-<story>-<slug>: <status>
# Statuses: backlog, ready-for-dev, in-progress, done, review.
#
# 1-1-example: backlog
`

// OpenWorkspace validates that root contains an initialized state directory.
func OpenWorkspace(root string) (*Workspace, error) {
	ws := &Workspace{Root: root}
	info, err := os.Stat(ws.StateDir())
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s not found in %s (not initialized)", stateDir, root)
	}
	if _, err := os.Stat(ws.LedgerPath()); err != nil {
		return nil, fmt.Errorf("ledger %s not found: %w", ws.LedgerPath(), err)
	}
	return ws, nil
}

// InitWorkspace scaffolds the state directory inside root: the starter
// ledger plus empty stories/ and epics/ folders. It refuses to touch a
// workspace that is already initialized.
func InitWorkspace(root string) (*Workspace, error) {
	ws := &Workspace{Root: root}
	if _, err := os.Stat(ws.StateDir()); err == nil {
		return nil, fmt.Errorf("%s already exists in %s", stateDir, root)
	}
	for _, dir := range []string{ws.StateDir(), ws.StoriesDir(), ws.EpicsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(ws.LedgerPath(), []byte(starterLedger), 0644); err != nil {
		return nil, fmt.Errorf("failed to write starter ledger: %w", err)
	}
	return ws, nil
}

func (w *Workspace) StateDir() string   { return filepath.Join(w.Root, stateDir) }
func (w *Workspace) LedgerPath() string { return filepath.Join(w.StateDir(), ledgerFileName) }
func (w *Workspace) StoriesDir() string { return filepath.Join(w.StateDir(), storiesDir) }
func (w *Workspace) EpicsDir() string   { return filepath.Join(w.StateDir(), epicsDir) }
func (w *Workspace) RunsDir() string    { return filepath.Join(w.StateDir(), runsDir) }
func (w *Workspace) ReportPath() string { return filepath.Join(w.StateDir(), reportFileName) }
func (w *Workspace) ConfigPath() string { return filepath.Join(w.StateDir(), configFileName) }
func (w *Workspace) LockPath() string   { return filepath.Join(w.StateDir(), lockFileName) }

// StoryPath returns the artifact path for a story key.
func (w *Workspace) StoryPath(key Key) string {
	return filepath.Join(w.StoriesDir(), key.String()+".md")
}

// EpicPath returns the optional epic artifact path for an epic number.
func (w *Workspace) EpicPath(epic int) string {
	return filepath.Join(w.EpicsDir(), EpicKey(epic)+".md")
}

// RunDir creates and returns the artifact directory for a run id.
func (w *Workspace) RunDir(runID string) (string, error) {
	dir := filepath.Join(w.RunsDir(), runID)
	for _, sub := range []string{"attempts", "review"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return "", fmt.Errorf("failed to create run directory: %w", err)
		}
	}
	return dir, nil
}

// Ledger opens the workspace ledger.
func (w *Workspace) Ledger() (*Ledger, error) {
	return OpenLedger(w.LedgerPath())
}
