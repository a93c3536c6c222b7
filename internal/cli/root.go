package cli

import (
	"github.com/spf13/cobra"

	"github.com/pablasso/storyrunner/internal/version"
)

var workspaceDir string

var rootCmd = &cobra.Command{
	Use:     "storyrunner",
	Short:   "Autonomous story pipeline for AI coding agents",
	Long:    `Storyrunner drives an AI coding agent through a backlog of stories: one task at a time, bounded retries, validation and adversarial review before anything is marked done.`,
	Version: version.Version,

	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspaceDir, "dir", "C", ".", "Workspace directory containing .storyrunner")
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
