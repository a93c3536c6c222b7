package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pablasso/storyrunner/internal/backlog"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a storyrunner workspace",
	Long:  "Creates the .storyrunner/ state directory: a starter ledger plus stories/ and epics/ folders.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := checkGitRepo(workspaceDir); err != nil {
		return err
	}

	ws, err := backlog.InitWorkspace(workspaceDir)
	if err != nil {
		return err
	}

	fmt.Printf("Initialized storyrunner workspace in %s\n", ws.StateDir())
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add story keys to", ws.LedgerPath())
	fmt.Println("  2. Run: storyrunner run")
	return nil
}
