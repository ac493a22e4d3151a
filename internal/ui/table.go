package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/five82/hangar/internal/downloads"
)

// chromeRows is the height taken by header, tabs, banner slot, table
// header and footer.
const chromeRows = 7

func (m Model) renderMain() string {
	sections := []string{m.renderHeader(), m.renderTabs()}
	if m.banner != "" {
		sections = append(sections, m.theme.Styles().Banner.Width(m.width).Render(m.banner))
	}
	if m.view == ViewDownloads {
		sections = append(sections, m.renderJobs())
	} else {
		sections = append(sections, m.renderInstances())
	}
	body := lipgloss.JoinVertical(lipgloss.Left, sections...)

	footer := m.renderFooter()
	gap := m.height - lipgloss.Height(body) - lipgloss.Height(footer)
	if gap > 0 {
		body += strings.Repeat("\n", gap)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, footer)
}

// window returns the slice bounds that keep selected on screen.
func window(total, selected, height int) (int, int) {
	if height <= 0 || total <= height {
		return 0, total
	}
	start := min(max(selected-height/2, 0), total-height)
	return start, start + height
}

func (m Model) visibleRows() int {
	return max(m.height-chromeRows, 1)
}

func (m Model) renderInstances() string {
	list := m.snapshot.Instances
	if len(list) == 0 {
		return m.emptyText("No instances")
	}
	wide := m.width >= LayoutWideWidth
	compact := m.width < LayoutCompactWidth

	headers := []string{"Name", "Status", "Node", "Players"}
	if !compact {
		headers = append(headers, "Message")
	}
	if wide {
		headers = append(headers, "Updated")
	}

	start, end := window(len(list), m.selected[ViewInstances], m.visibleRows())
	rows := make([][]string, 0, end-start)
	statuses := make([]string, 0, end-start)
	for _, inst := range list[start:end] {
		row := []string{
			truncateMiddle(inst.Label(), 28),
			stateLabel(string(inst.Status)),
			inst.Node,
			strconv.Itoa(inst.Players),
		}
		if !compact {
			row = append(row, truncateMiddle(inst.Message, 40))
		}
		if wide {
			row = append(row, sinceUnixMs(inst.UpdatedAt, m.now()))
		}
		rows = append(rows, row)
		statuses = append(statuses, string(inst.Status))
	}
	return m.renderTable(headers, rows, statuses, 1, m.selected[ViewInstances]-start)
}

func (m Model) renderJobs() string {
	jobs := m.snapshot.Jobs
	if len(jobs) == 0 {
		return m.emptyText("Download queue is empty")
	}
	compact := m.width < LayoutCompactWidth

	headers := []string{"#", "Template", "Target", "State", "Progress", "Actions"}
	if !compact {
		headers = append(headers, "Message")
	}

	start, end := window(len(jobs), m.selected[ViewDownloads], m.visibleRows())
	rows := make([][]string, 0, end-start)
	states := make([]string, 0, end-start)
	for i, job := range jobs[start:end] {
		template := job.TemplateID
		if job.Version != "" {
			template += "@" + job.Version
		}
		row := []string{
			strconv.Itoa(start + i + 1),
			truncateMiddle(template, 30),
			string(job.Target),
			stateLabel(string(job.State)),
			progressText(job),
			actionsText(downloads.AllowedActions(job)),
		}
		if !compact {
			row = append(row, truncateMiddle(job.Message, 40))
		}
		rows = append(rows, row)
		states = append(states, string(job.State))
	}
	return m.renderTable(headers, rows, states, 3, m.selected[ViewDownloads]-start)
}

func actionsText(set downloads.ActionSet) string {
	actions := set.List()
	if len(actions) == 0 {
		return "-"
	}
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return strings.Join(names, " ")
}

// renderTable draws rows with the status column colored and the selected
// row highlighted.
func (m Model) renderTable(headers []string, rows [][]string, statuses []string, statusCol, selected int) string {
	styles := m.theme.Styles()
	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...).
		Rows(rows...).
		Width(m.width).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styles.TableHeader.Padding(0, 1)
			case row == selected:
				return styles.Selected.Padding(0, 1)
			case col == statusCol && row >= 0 && row < len(statuses):
				return styles.StatusStyle(statuses[row]).Padding(0, 1)
			default:
				return cell
			}
		})
	return t.Render()
}

func (m Model) emptyText(text string) string {
	if !m.snapshot.SignedIn {
		text = "Sign in with `hangar login` to load data"
	}
	return m.theme.Styles().MutedText.Padding(1, 2).Render(text)
}
