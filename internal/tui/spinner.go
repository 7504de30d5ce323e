package tui

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCanceled is returned when the user interrupts a spinner.
var ErrCanceled = fmt.Errorf("canceled")

type spinnerModel struct {
	spinner  spinner.Model
	message  string
	done     bool
	err      error
	styles   *Styles
	quitting bool
}

type spinnerDoneMsg struct{ err error }

func newSpinnerModel(message string, styles *Styles) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Cursor
	return spinnerModel{spinner: s, message: message, styles: styles}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case spinnerDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.quitting || m.done {
		// The caller renders the result.
		return ""
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), m.message)
}

// Spinner shows progress on a terminal while a function runs.
type Spinner struct {
	message string
	out     io.Writer
	styles  *Styles
}

// NewSpinner creates a spinner that draws to out.
func NewSpinner(out io.Writer, message string) *Spinner {
	return &Spinner{message: message, out: out, styles: NewStyles()}
}

// Run executes fn while the spinner is shown. Pressing q or ctrl+c
// cancels fn's context and returns ErrCanceled.
func (s *Spinner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newSpinnerModel(s.message, s.styles),
		tea.WithOutput(s.out),
		tea.WithContext(ctx),
	)
	go func() {
		p.Send(spinnerDoneMsg{err: fn(ctx)})
	}()

	final, err := p.Run()
	if err != nil {
		return err
	}
	m := final.(spinnerModel) //nolint:errcheck // always a spinnerModel
	if m.quitting {
		return ErrCanceled
	}
	return m.err
}
