package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"ctpull/pkg/collector"
)

// quitDelay keeps the final state on screen before the program exits
const quitDelay = 2 * time.Second

// PageMsg is sent when a page is accepted
type PageMsg struct {
	Event collector.PageEvent
}

// RetryMsg is sent when an attempt counts against the retry budget
type RetryMsg struct {
	Event collector.RetryEvent
}

// DoneMsg is sent when the collection returns
type DoneMsg struct {
	Result *collector.Result
	Err    error
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()

	case PageMsg:
		m.RecordPage(msg.Event)
		m.AddLogMessage("INFO", fmt.Sprintf("page %d: +%d posts, %d total", msg.Event.Call, msg.Event.Records, msg.Event.Total))
		return m, nil

	case RetryMsg:
		m.RecordRetry(msg.Event)
		m.AddLogMessage(retryLevel(msg.Event), describeRetry(msg.Event))
		return m, nil

	case DoneMsg:
		m.Finish(msg.Result, msg.Err)
		level, text := describeDone(msg.Result, msg.Err)
		m.AddLogMessage(level, text)
		return m, tea.Tick(quitDelay, func(time.Time) tea.Msg { return tea.Quit() })

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = []LogMessage{}
		return m, nil
	}

	return m, nil
}

func retryLevel(ev collector.RetryEvent) string {
	if ev.Exhausted || ev.Err != nil {
		return "ERROR"
	}
	return "WARN"
}

func describeRetry(ev collector.RetryEvent) string {
	what := "empty page"
	if ev.Err != nil {
		what = ev.Err.Error()
	}
	if ev.Exhausted {
		return fmt.Sprintf("giving up after %d retries: %s", ev.Retries, what)
	}
	return fmt.Sprintf("retry %d/%d in %s: %s", ev.Retries, ev.MaxRetries, ev.Delay, what)
}

func describeDone(res *collector.Result, err error) (string, string) {
	switch {
	case res == nil:
		return "ERROR", fmt.Sprintf("collection failed: %v", err)
	case err != nil:
		return "WARN", fmt.Sprintf("interrupted with %d posts", len(res.Records))
	case res.StopReason == collector.StopRetriesExhausted:
		return "ERROR", fmt.Sprintf("stopped with %d posts: %s", len(res.Records), res.StopReason)
	default:
		return "SUCCESS", fmt.Sprintf("collected %d posts in %d pages: %s", len(res.Records), res.Calls, res.StopReason)
	}
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
