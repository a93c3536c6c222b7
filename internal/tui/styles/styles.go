// Package styles holds the shared lipgloss styles for the dashboard.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#8787D7") // Periwinkle for headings and selection
	dim    = lipgloss.Color("#6C6C6C") // Gray for secondary text
	good   = lipgloss.Color("#87D787") // Green for passed work
	bad    = lipgloss.Color("#D78787") // Red for failures and escalations

	// Title renders panel and screen headings.
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(accent).
		MarginBottom(1)

	// Subtle renders hints and secondary labels.
	Subtle = lipgloss.NewStyle().
		Foreground(dim)

	// Selected highlights the actionable choice.
	Selected = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent)

	// Help renders the bottom key-hint bar.
	Help = lipgloss.NewStyle().
		Foreground(dim)

	// Box draws panel borders.
	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(1, 2)

	// Success marks completed stories and clean runs.
	Success = lipgloss.NewStyle().
		Foreground(good)

	// Error marks failed attempts and escalations.
	Error = lipgloss.NewStyle().
		Foreground(bad)
)
