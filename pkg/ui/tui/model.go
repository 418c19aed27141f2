package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ctpull/pkg/collector"
)

// Model is the collection dashboard. Bubble Tea serializes Update and View,
// so the model needs no locking; outside goroutines talk to it through TUI.
type Model struct {
	// UI components
	spinner  spinner.Model
	progress progress.Model

	// Budgets
	maxCalls   int
	maxRetries int

	// Collection state
	pages        int
	records      int
	attempts     int
	retries      int
	totalRetries int
	newest       time.Time
	oldest       time.Time
	locator      string
	hasMore      bool

	// Outcome
	done   bool
	result *collector.Result
	err    error

	sessionStartTime time.Time

	// UI state
	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a dashboard for a run with the given budgets
func NewModel(maxCalls, maxRetries int) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accent)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return Model{
		spinner:          s,
		progress:         p,
		maxCalls:         maxCalls,
		maxRetries:       maxRetries,
		sessionStartTime: time.Now(),
		logMessages:      []LogMessage{},
		maxLogMessages:   50,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// RecordPage folds an accepted page into the dashboard
func (m *Model) RecordPage(ev collector.PageEvent) {
	m.pages = ev.Call
	m.records = ev.Total
	m.attempts++
	m.retries = 0
	m.locator = ev.Locator
	m.hasMore = ev.HasMore

	if !ev.Newest.IsZero() && (m.newest.IsZero() || ev.Newest.After(m.newest)) {
		m.newest = ev.Newest
	}
	if !ev.Oldest.IsZero() && (m.oldest.IsZero() || ev.Oldest.Before(m.oldest)) {
		m.oldest = ev.Oldest
	}
}

// RecordRetry folds a failed or empty attempt into the dashboard
func (m *Model) RecordRetry(ev collector.RetryEvent) {
	m.attempts = ev.Attempt
	m.retries = ev.Retries
	m.totalRetries++
	if ev.MaxRetries > 0 {
		m.maxRetries = ev.MaxRetries
	}
}

// Finish stores the outcome of the run
func (m *Model) Finish(res *collector.Result, err error) {
	m.done = true
	m.result = res
	m.err = err
	if res != nil {
		m.pages = res.Calls
		m.records = len(res.Records)
		m.attempts = res.Attempts
		m.hasMore = res.HasMore
	}
}

// CallProgress returns the share of the call budget spent, between 0 and 1
func (m *Model) CallProgress() float64 {
	if m.maxCalls <= 0 {
		return 0
	}
	p := float64(m.pages) / float64(m.maxCalls)
	if p > 1 {
		p = 1
	}
	return p
}

// RetryUsage returns the consecutive retry count as a percentage of the budget
func (m *Model) RetryUsage() float64 {
	if m.maxRetries <= 0 {
		return 0
	}
	return float64(m.retries) / float64(m.maxRetries) * 100
}

// Rate returns the average number of posts per minute
func (m *Model) Rate() float64 {
	elapsed := time.Since(m.sessionStartTime).Minutes()
	if elapsed <= 0 {
		return 0
	}
	return float64(m.records) / elapsed
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   levelColor(level),
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}
