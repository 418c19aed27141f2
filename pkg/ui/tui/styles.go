package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	accent   = lipgloss.Color("#00FFFF")
	frame    = lipgloss.Color("#FF00FF")
	healthy  = lipgloss.Color("#39FF14")
	figure   = lipgloss.Color("#FFFF00")
	caution  = lipgloss.Color("#FF6700")
	failure  = lipgloss.Color("#FF0000")
	screenBg = lipgloss.Color("#0A0E27")
	panelBg  = lipgloss.Color("#1A1E37")
	muted    = lipgloss.Color("#B0B0B0")
	faint    = lipgloss.Color("#666666")
	track    = lipgloss.Color("#333333")
)

var (
	screenStyle = lipgloss.NewStyle().Background(screenBg).Foreground(muted)

	logoStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			Padding(1, 0).
			Align(lipgloss.Center)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(frame).
			Background(panelBg).
			Padding(1, 2)

	panelTitleStyle = lipgloss.NewStyle().
			Background(frame).
			Foreground(screenBg).
			Bold(true).
			Padding(0, 1)

	labelStyle     = lipgloss.NewStyle().Foreground(accent).Bold(true)
	figureStyle    = lipgloss.NewStyle().Foreground(figure)
	mutedStyle     = lipgloss.NewStyle().Foreground(muted)
	trackStyle     = lipgloss.NewStyle().Foreground(track)
	timestampStyle = lipgloss.NewStyle().Foreground(faint)
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Padding(1, 0, 0, 2)
)

// levelColors colors the event log by level
var levelColors = map[string]lipgloss.Color{
	"ERROR":   failure,
	"WARN":    caution,
	"SUCCESS": healthy,
	"INFO":    accent,
}

func levelColor(level string) lipgloss.Color {
	if c, ok := levelColors[level]; ok {
		return c
	}
	return muted
}

// budgetLevel grades consecutive retries against the retry budget
type budgetLevel int

const (
	budgetIdle budgetLevel = iota
	budgetRetrying
	// the next failure ends the run
	budgetLastChance
)

func gradeRetries(retries, maxRetries int) budgetLevel {
	switch {
	case retries <= 0:
		return budgetIdle
	case maxRetries > 0 && retries >= maxRetries-1:
		return budgetLastChance
	default:
		return budgetRetrying
	}
}

func (l budgetLevel) style() lipgloss.Style {
	switch l {
	case budgetLastChance:
		return lipgloss.NewStyle().Foreground(failure)
	case budgetRetrying:
		return lipgloss.NewStyle().Foreground(caution)
	}
	return lipgloss.NewStyle().Foreground(healthy)
}

// status renders a bold status line in the color of a log level
func status(level, text string) string {
	return lipgloss.NewStyle().Foreground(levelColor(level)).Bold(true).Render(text)
}

// stat renders one "Label: value" line
func stat(label, value string) string {
	return labelStyle.Render(label) + " " + figureStyle.Render(value)
}

// panel frames a body under a title. A zero height fits the content.
func panel(title string, width, height int, body string) string {
	style := panelStyle.Width(width)
	if height > 0 {
		style = style.Height(height)
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, panelTitleStyle.Render(" "+title+" "), body))
}
