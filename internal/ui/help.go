package ui

import (
	"github.com/charmbracelet/lipgloss"
)

func (m Model) renderHelp() string {
	styles := m.theme.Styles()
	full := m.help
	full.ShowAll = true

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			styles.AccentText.Render("Keys"),
			"",
			full.View(m.keys),
			"",
			styles.FaintText.Render("Actions not listed for a job are unavailable in its state. Press any key to close."),
		))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
