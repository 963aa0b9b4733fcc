// Package ui holds the small set of lipgloss helpers meshaccessctl
// renders output with, trimmed from getployz-ployz/cmd/ployz/ui's
// larger palette down to what a read-only inspection CLI needs: a
// bordered table and a couple of inline accents. The bubbletea-based
// InteractiveTable getployz-ployz also offers is not reproduced here —
// meshaccessctl has no dependency on bubbletea/bubbles.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	purple = lipgloss.Color("99")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")
)

var (
	AccentStyle = lipgloss.NewStyle().Foreground(purple)
	MutedStyle  = lipgloss.NewStyle().Foreground(dim)
)

func Accent(s string) string { return AccentStyle.Render(s) }
func Muted(s string) string  { return MutedStyle.Render(s) }

// Table renders headers/rows as a rounded-border table with a bold
// header row and zebra-striped body, the same StyleFunc shape
// getployz-ployz/cmd/ployz/ui.Table uses.
func Table(headers []string, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	oddStyle := cellStyle.Foreground(dim)
	evenStyle := cellStyle

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 0:
				return evenStyle
			default:
				return oddStyle
			}
		}).
		Headers(headers...).
		Rows(rows...)

	return t.String()
}
