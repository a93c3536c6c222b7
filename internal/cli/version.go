package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pablasso/storyrunner/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("storyrunner %s (commit %s, built %s)\n",
			version.Version, version.CommitSHA, version.BuildDate)
	},
}
