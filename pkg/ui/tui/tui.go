package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"ctpull/pkg/collector"
)

// TUI is a full-screen dashboard for one collection run. Its Page, Retry
// and Done methods are safe to call from the collecting goroutine.
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a dashboard for a run with the given budgets
func NewTUI(maxCalls, maxRetries int, opts ...tea.ProgramOption) *TUI {
	model := NewModel(maxCalls, maxRetries)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}

	return &TUI{
		program: tea.NewProgram(&model, opts...),
		model:   &model,
	}
}

// Start runs the program until the user quits or the run finishes
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// Page forwards an accepted page to the dashboard
func (t *TUI) Page(ev collector.PageEvent) {
	t.Send(PageMsg{Event: ev})
}

// Retry forwards a retry event to the dashboard
func (t *TUI) Retry(ev collector.RetryEvent) {
	t.Send(RetryMsg{Event: ev})
}

// Done forwards the outcome; the program exits shortly after
func (t *TUI) Done(res *collector.Result, err error) {
	t.Send(DoneMsg{Result: res, Err: err})
}

// LogInfo adds an info line to the event panel
func (t *TUI) LogInfo(message string) {
	t.Send(LogMsg{Level: "INFO", Message: message})
}
