package components

import (
	"strings"

	"github.com/pablasso/storyrunner/internal/tui/styles"
)

// HelpBar renders the bottom key-hint line. Items are joined with a dot
// separator and the line is padded to the full width so the bar keeps its
// background across the screen.
func HelpBar(width int, items []string) string {
	return styles.Help.Width(width).Render(strings.Join(items, " • "))
}
