package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const dateLayout = "2006-01-02 15:04"

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, m.renderLogo())

	leftColumn := m.renderLeftColumn()
	rightColumn := m.renderRightColumn()

	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftColumn,
		"  ",
		rightColumn,
	)
	sections = append(sections, mainContent)

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help, q to stop"))
	}

	return screenStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderLogo() string {
	logo := `
╔════════════════════════════════════════╗
║   ┌─┐┌┬┐┌─┐┬ ┬┬  ┬                     ║
║   │   │ ├─┘│ ││  │                     ║
║   └─┘ ┴ ┴  └─┘┴─┘┴─┘                   ║
║      CROWDTANGLE POST COLLECTOR        ║
╚════════════════════════════════════════╝`

	return logoStyle.Width(m.width).Render(logo)
}

func (m *Model) renderLeftColumn() string {
	width := (m.width - 4) / 2

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderProgressPanel(width),
	)
}

func (m *Model) renderRightColumn() string {
	width := (m.width - 4) / 2

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderRetryPanel(width),
		m.renderLogsPanel(width),
	)
}

// renderStatsPanel renders the run counters and status
func (m *Model) renderStatsPanel(width int) string {
	stats := []string{
		stat("Session Time:", formatDuration(time.Since(m.sessionStartTime))),
		stat("Posts:", fmt.Sprintf("%d", m.records)),
		stat("Pages:", fmt.Sprintf("%d/%d", m.pages, m.maxCalls)),
		stat("Attempts:", fmt.Sprintf("%d", m.attempts)),
		labelStyle.Render("Rate:") + " " + lipgloss.NewStyle().Foreground(accent).Render(fmt.Sprintf("%.1f posts/min", m.Rate())),
		m.renderStatus(),
	}
	return panel("COLLECTION", width, 0, strings.Join(stats, "\n"))
}

func (m *Model) renderStatus() string {
	if !m.done {
		return m.spinner.View() + " " + figureStyle.Render("collecting")
	}
	level, _ := describeDone(m.result, m.err)
	switch {
	case m.result == nil:
		return status(level, "✗ failed")
	case m.err != nil:
		return status(level, "■ interrupted")
	case level == "ERROR":
		return status(level, "✗ "+string(m.result.StopReason))
	}
	return status(level, "✓ "+string(m.result.StopReason))
}

// renderProgressPanel renders the call budget bar and the covered date span
func (m *Model) renderProgressPanel(width int) string {
	bar := m.progress
	bar.Width = max(width-8, 10)

	span := mutedStyle.Render("no dated posts yet")
	if !m.newest.IsZero() {
		span = stat("Newest:", m.newest.Format(dateLayout)) + "\n" + stat("Oldest:", m.oldest.Format(dateLayout))
	}

	more := "no"
	if m.hasMore {
		more = "yes"
	}

	return panel("CALL BUDGET", width, 0, strings.Join([]string{
		bar.ViewAs(m.CallProgress()),
		span,
		stat("More pages:", more),
	}, "\n"))
}

// renderRetryPanel renders consecutive retries against the retry budget
func (m *Model) renderRetryPanel(width int) string {
	barWidth := max(width-8, 10)
	filled := int(min(m.RetryUsage(), 100) * float64(barWidth) / 100)

	level := gradeRetries(m.retries, m.maxRetries).style()
	bar := level.Render(strings.Repeat("█", filled)) + trackStyle.Render(strings.Repeat("░", barWidth-filled))

	return panel("RETRIES", width, 0, strings.Join([]string{
		labelStyle.Render("Consecutive:") + " " + level.Render(fmt.Sprintf("%d/%d", m.retries, m.maxRetries)),
		bar,
		stat("Total:", fmt.Sprintf("%d", m.totalRetries)),
	}, "\n"))
}

// renderLogsPanel renders the latest events
func (m *Model) renderLogsPanel(width int) string {
	start := max(len(m.logMessages)-10, 0)
	maxMsgLen := max(width-25, 10)

	var logs []string
	for _, log := range m.logMessages[start:] {
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		logs = append(logs, fmt.Sprintf("%s %s %s",
			timestampStyle.Render(log.Time.Format("15:04:05")), level, mutedStyle.Render(truncate(log.Message, maxMsgLen))))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = mutedStyle.Render("No events yet...")
	}

	return panel("EVENTS", width, max(m.height-30, 5), content)
}

// renderHelp renders the help panel
func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Stop collecting and quit
    ctrl+l   - Clear events
    ?        - Toggle this help

  Status Indicators:
    ` + budgetIdle.style().Render("Green") + `    - Healthy
    ` + budgetRetrying.style().Render("Orange") + `   - Retrying
    ` + budgetLastChance.style().Render("Red") + `      - One more failure ends the run
`

	return panelStyle.Width(m.width).Render(help)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
