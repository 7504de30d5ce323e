// Package dashboard is a terminal view with one fetch hook per resource.
// Every render re-applies each hook with the current params; failed panels
// retry automatically until their circuit opens, and r retries the focused
// panel manually.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/campusdesk/campus/internal/api"
	"github.com/campusdesk/campus/internal/output"
	"github.com/campusdesk/campus/internal/resource"
	"github.com/campusdesk/campus/internal/school"
	"github.com/campusdesk/campus/internal/tui"
)

// Panel pairs a catalog entry with its hook.
type Panel struct {
	Entry school.Entry
	Hook  resource.View[api.Query]
}

// Model is the dashboard's Bubble Tea model.
type Model struct {
	ctx     context.Context
	title   string
	params  api.Query
	panels  []Panel
	results []resource.Result[any]

	cursor  int
	width   int
	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	styles  *tui.Styles
}

// New creates a dashboard over panels. Hooks are applied with params on
// every update, and their fetches run under ctx.
func New(ctx context.Context, title string, params api.Query, panels []Panel) Model {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	styles := tui.NewStyles()
	s.Style = styles.Cursor

	return Model{
		ctx:     ctx,
		title:   title,
		params:  params,
		panels:  panels,
		results: make([]resource.Result[any], len(panels)),
		width:   80,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: s,
		styles:  styles,
	}
}

// Init starts the spinner and the first fetch of every panel.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.render())
}

// render applies every hook and collects the effects to run.
func (m *Model) render() tea.Cmd {
	var cmds []tea.Cmd
	for i, p := range m.panels {
		res, cmd := p.Hook.Use(m.ctx, m.params)
		m.results[i] = res
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

// Update handles keys, spinner ticks and hook updates.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.panels)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Retry):
			if m.cursor < len(m.panels) {
				cmds = append(cmds, m.panels[m.cursor].Hook.Refetch(m.ctx))
			}
		case key.Matches(msg, m.keys.RetryAll):
			for _, p := range m.panels {
				cmds = append(cmds, p.Hook.Refetch(m.ctx))
			}
		case key.Matches(msg, m.keys.Invalidate):
			if m.cursor < len(m.panels) {
				m.panels[m.cursor].Hook.Invalidate()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case resource.UpdatedMsg:
		// fall through to render
	}

	cmds = append(cmds, m.render())
	return m, tea.Batch(cmds...)
}

// View renders one line per panel.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.title))
	b.WriteString("\n")

	nameWidth := 0
	for _, p := range m.panels {
		nameWidth = max(nameWidth, len(p.Entry.Name))
	}

	for i, p := range m.panels {
		cursor := "  "
		name := p.Entry.Name
		if i == m.cursor {
			cursor = m.styles.Cursor.Render("> ")
			name = m.styles.Selected.Render(name)
		}
		pad := strings.Repeat(" ", nameWidth-len(p.Entry.Name)+2)
		line := cursor + name + pad + m.status(m.results[i])
		b.WriteString(ansi.Truncate(line, m.width, "…"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Footer.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) status(r resource.Result[any]) string {
	switch {
	case r.Loading:
		return m.spinner.View() + m.styles.Muted.Render(" loading")
	case r.Blocked():
		return m.styles.Error.Render("✗ "+r.Error) + m.styles.Muted.Render("  (r to retry)")
	case r.Failed():
		return m.styles.Warning.Render(fmt.Sprintf("! %s (attempt %d)", r.Error, r.RetryCount))
	case r.HasData:
		summary := summarize(r)
		if r.Stale {
			return m.styles.Muted.Render("~ " + summary + " (stale)")
		}
		return m.styles.Success.Render("✓ ") + summary + m.styles.Muted.Render(" · "+age(r.FetchedAt))
	}
	return m.styles.Muted.Render("idle")
}

// summarize describes settled data: fee totals, room vacancies, a count
// for other lists and the first few fields for objects.
func summarize(r resource.Result[any]) string {
	switch data := r.Data.(type) {
	case school.FeeSummary:
		return data.Line()
	case []school.HostelRoom:
		free := 0
		for _, room := range data {
			free += room.Vacancies()
		}
		return fmt.Sprintf("%d rooms, %d beds free", len(data), free)
	}

	if n, ok := resource.ItemCount(r.Data); ok {
		if r.Meta != nil && r.Meta.Count > n {
			return fmt.Sprintf("%d of %d", n, r.Meta.Count)
		}
		return fmt.Sprintf("%d items", n)
	}
	if obj, ok := output.NormalizeData(r.Data).(map[string]any); ok {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		return objectSummary(obj, keys)
	}
	return fmt.Sprint(r.Data)
}

func objectSummary(data map[string]any, keys []string) string {
	sort.Strings(keys)
	parts := make([]string, 0, 3)
	for _, k := range keys {
		if len(parts) == 3 {
			parts = append(parts, "…")
			break
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return strings.Join(parts, " ")
}

func age(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t).Round(time.Second)
	if d < time.Second {
		return "just now"
	}
	return d.String() + " ago"
}
