package cli

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/pablasso/storyrunner/internal/backlog"
)

var showCmd = &cobra.Command{
	Use:   "show <story>",
	Short: "Render a story file in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	ledger, err := ws.Ledger()
	if err != nil {
		return err
	}

	entry, err := ledger.ResolveStory(args[0])
	if err != nil {
		return err
	}
	story, err := backlog.LoadStory(ws, entry.Key)
	if err != nil {
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	out, err := renderer.Render(story.Content)
	if err != nil {
		return fmt.Errorf("failed to render story: %w", err)
	}

	fmt.Printf("%s [%s]\n", entry.Key, entry.Status)
	fmt.Print(out)
	return nil
}
