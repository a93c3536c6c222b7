package main

import (
	"errors"
	"os"

	"github.com/pablasso/storyrunner/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		// Missing collaborators (worker CLI, workspace) exit 2 so scripts
		// can tell setup problems from escalated stories.
		var prereq *cli.PrerequisiteError
		if errors.As(err, &prereq) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
