package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/hangar/internal/downloads"
	"github.com/five82/hangar/internal/instances"
	"github.com/five82/hangar/internal/state"
)

// renderHeader renders the status bar: identity, endpoint, and the health
// of the active view's poll.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	parts := []string{
		bg.Render("hangar", styles.Logo),
		m.identityText(styles, bg),
		bg.Render(truncateMiddle(m.apiURL, 40), styles.FaintText),
		m.feedText(styles, bg, m.view.live()),
	}
	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

func (m Model) identityText(styles Styles, bg BgStyle) string {
	snap := m.snapshot
	switch {
	case snap.SignedIn:
		text := snap.User.Label()
		if len(snap.User.Roles) > 0 {
			text += " [" + strings.Join(snap.User.Roles, ",") + "]"
		}
		return bg.Render(text, styles.SuccessText)
	case snap.Expired:
		return bg.Render("session expired", styles.DangerText)
	default:
		return bg.Render("signed out", styles.WarningText)
	}
}

// feedText describes one poll feed: waiting, live, retrying, or offline.
func (m Model) feedText(styles Styles, bg BgStyle, view state.View) string {
	feed := m.snapshot.Feed(view)
	if !m.snapshot.SignedIn {
		return bg.Render("paused", styles.MutedText)
	}
	switch {
	case feed.IsOffline():
		return bg.Render(fmt.Sprintf("offline (%d failures)", feed.ConsecutiveFailures), styles.DangerText)
	case feed.LastError != nil:
		return bg.Render("retrying", styles.WarningText)
	case !feed.HasData:
		return bg.Render("waiting for data", styles.MutedText)
	default:
		return bg.Render("updated "+humanizeDuration(m.now().Sub(feed.LastUpdated))+" ago", styles.MutedText)
	}
}

// renderTabs renders the view switcher with per-view counts.
func (m Model) renderTabs() string {
	styles := m.theme.Styles()
	tab := func(v View, label string) string {
		if v == m.view {
			return styles.Selected.Padding(0, 1).Render(label)
		}
		return styles.MutedText.Padding(0, 1).Render(label)
	}

	instCounts := instances.Counts(m.snapshot.Instances)
	jobCounts := downloads.Counts(m.snapshot.Jobs)
	instLabel := fmt.Sprintf("1 Instances %d (%d running)", len(m.snapshot.Instances), instCounts[instances.StatusRunning])
	jobLabel := fmt.Sprintf("2 Downloads %d (%d running, %d queued)",
		len(m.snapshot.Jobs), jobCounts[downloads.StateRunning], jobCounts[downloads.StateQueued])

	return lipgloss.JoinHorizontal(lipgloss.Top, tab(ViewInstances, instLabel), " ", tab(ViewDownloads, jobLabel))
}

// renderFooter shows the last command result or the short key help.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	if m.status != "" {
		style := styles.Footer
		if m.statusErr {
			style = style.Foreground(lipgloss.Color(m.theme.Danger))
		}
		return style.Width(m.width).Render(m.status)
	}
	return styles.Footer.Width(m.width).Render(m.help.ShortHelpView(m.keys.ShortHelp()))
}
