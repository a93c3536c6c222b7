package cli

import (
	"fmt"
	"os/exec"

	"github.com/pablasso/storyrunner/internal/backlog"
	"github.com/pablasso/storyrunner/internal/git"
)

// PrerequisiteError represents a failed prerequisite check with helpful remediation info.
type PrerequisiteError struct {
	Check   string
	Message string
	Help    string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("%s: %s\n\n%s", e.Check, e.Message, e.Help)
}

// checkPrerequisites validates the environment before a run.
func checkPrerequisites(dir, worker string) error {
	if err := checkGitRepo(dir); err != nil {
		return err
	}
	if err := checkWorker(worker); err != nil {
		return err
	}
	return nil
}

// checkGitRepo verifies the workspace is a git repository. The stall
// detector fingerprints version-control state, so this is load-bearing,
// not cosmetic.
func checkGitRepo(dir string) error {
	if !git.IsRepository(dir) {
		return &PrerequisiteError{
			Check:   "Git repository",
			Message: "Workspace is not a git repository",
			Help:    "Storyrunner tracks worker progress through git status. Run 'git init' first.",
		}
	}
	return nil
}

// checkWorker verifies the worker CLI is installed, and for the default
// claude worker, that it is authenticated.
func checkWorker(worker string) error {
	if _, err := exec.LookPath(worker); err != nil {
		return &PrerequisiteError{
			Check:   "Worker CLI",
			Message: fmt.Sprintf("%q not found in PATH", worker),
			Help:    "Install the worker CLI, or point the worker config key at a different binary.",
		}
	}

	if worker == "claude" {
		cmd := exec.Command("claude", "auth", "status")
		if err := cmd.Run(); err != nil {
			return &PrerequisiteError{
				Check:   "Claude Code authentication",
				Message: "Claude Code not authenticated",
				Help:    "Run 'claude auth' to authenticate.",
			}
		}
	}
	return nil
}

// openWorkspace opens the workspace or explains how to get one.
func openWorkspace() (*backlog.Workspace, error) {
	ws, err := backlog.OpenWorkspace(workspaceDir)
	if err != nil {
		return nil, &PrerequisiteError{
			Check:   "Workspace",
			Message: err.Error(),
			Help:    "Run 'storyrunner init', then add your story keys to .storyrunner/status.yaml.",
		}
	}
	return ws, nil
}
