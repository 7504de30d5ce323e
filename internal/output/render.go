package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/term"
)

// Renderer handles styled terminal output.
type Renderer struct {
	width  int
	styled bool
	locale Locale

	Summary   lipgloss.Style
	Muted     lipgloss.Style
	Data      lipgloss.Style
	Error     lipgloss.Style
	Hint      lipgloss.Style
	Header    lipgloss.Style
	Cell      lipgloss.Style
	CellMuted lipgloss.Style
}

// NewRenderer creates a renderer. Styling is enabled when writing to a TTY,
// or when forceStyled is true, unless NO_COLOR is set.
func NewRenderer(w io.Writer, forceStyled bool, locale Locale) *Renderer {
	width, isTTY := terminalInfo(w)
	styled := (isTTY || forceStyled) && os.Getenv("NO_COLOR") == ""

	r := &Renderer{width: width, styled: styled, locale: locale}
	if !styled {
		plain := lipgloss.NewStyle()
		r.Summary, r.Muted, r.Data, r.Error = plain, plain, plain, plain
		r.Hint, r.Header, r.Cell, r.CellMuted = plain, plain, plain, plain
		return r
	}

	r.Summary = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	r.Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	r.Data = lipgloss.NewStyle()
	r.Error = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	r.Hint = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	r.Header = lipgloss.NewStyle().Bold(true)
	r.Cell = lipgloss.NewStyle()
	r.CellMuted = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	return r
}

// terminalInfo returns the terminal width and whether the writer is a TTY.
func terminalInfo(w io.Writer) (width int, isTTY bool) {
	width = 80

	f, ok := w.(*os.File)
	if !ok {
		return width, false
	}
	if cols, _, err := term.GetSize(f.Fd()); err == nil && cols >= 40 {
		width = cols
	}
	return width, term.IsTerminal(f.Fd())
}

// RenderResponse renders a success response to the writer.
func (r *Renderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString(r.Summary.Render(resp.Summary))
		b.WriteString("\n\n")
	}

	r.renderData(&b, NormalizeData(resp.Data), preferredColumns(resp.Meta))

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n")
		for _, bc := range resp.Breadcrumbs {
			b.WriteString(r.Muted.Render(fmt.Sprintf("  %s: %s", bc.Description, bc.Cmd)))
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response to the writer.
func (r *Renderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString(r.Error.Render("Error: " + resp.Error))
	b.WriteString("\n")
	if resp.Hint != "" {
		b.WriteString(r.Hint.Render("Hint: " + resp.Hint))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) renderData(b *strings.Builder, data any, preferred []string) {
	switch d := data.(type) {
	case []map[string]any:
		if len(d) == 0 {
			b.WriteString(r.Muted.Render("(no results)"))
			b.WriteString("\n")
			return
		}
		r.renderTable(b, d, preferred)
	case map[string]any:
		for _, key := range objectKeys(d) {
			b.WriteString(r.Header.Render(formatHeader(key) + ":"))
			b.WriteString(" ")
			b.WriteString(r.Data.Render(r.locale.FormatCell(d[key])))
			b.WriteString("\n")
		}
	case nil:
		b.WriteString(r.Muted.Render("(no data)"))
		b.WriteString("\n")
	default:
		b.WriteString(r.Data.Render(r.locale.FormatCell(d)))
		b.WriteString("\n")
	}
}

func (r *Renderer) renderTable(b *strings.Builder, data []map[string]any, preferred []string) {
	columns := selectColumns(detectColumns(data, preferred), data, r.width, r.locale)
	if len(columns) == 0 {
		return
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.Header
			}
			if col < len(columns) && columns[col].muted {
				return r.CellMuted
			}
			return r.Cell
		})

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.header
	}
	t.Headers(headers...)

	for _, item := range data {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = r.locale.FormatCell(item[col.key])
		}
		t.Row(row...)
	}

	b.WriteString(t.String())
	b.WriteString("\n")
}

// Column priority for table rendering (lower = higher priority).
var columnPriority = map[string]int{
	"id":          1,
	"name":        2,
	"title":       2,
	"code":        3,
	"status":      4,
	"branch":      5,
	"amount":      5,
	"balance":     5,
	"quantity":    5,
	"due_date":    6,
	"description": 7,
	"created_at":  8,
	"updated_at":  9,
}

var mutedColumns = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

var skipColumns = map[string]bool{
	"url": true,
}

type column struct {
	key      string
	header   string
	priority int
	muted    bool
	width    int
}

// preferredColumns reads the "columns" meta set by list commands.
func preferredColumns(meta map[string]any) []string {
	switch cols := meta["columns"].(type) {
	case []string:
		return cols
	case []any:
		out := make([]string, 0, len(cols))
		for _, c := range cols {
			if s, ok := c.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// detectColumns orders the first row's scalar keys. Preferred columns come
// first in the given order; the rest follow by columnPriority.
func detectColumns(data []map[string]any, preferred []string) []column {
	if len(data) == 0 {
		return nil
	}

	rank := make(map[string]int, len(preferred))
	for i, key := range preferred {
		rank[key] = i + 1
	}

	var cols []column
	for key, val := range data[0] {
		if skipColumns[key] {
			continue
		}
		switch val.(type) {
		case map[string]any, []any, []map[string]any:
			continue
		}
		priority, ok := rank[key]
		if !ok {
			priority = columnPriority[key]
			if priority == 0 {
				priority = 50
			}
			priority += 100
		}
		cols = append(cols, column{
			key:      key,
			header:   formatHeader(key),
			priority: priority,
			muted:    mutedColumns[key],
		})
	}

	sort.SliceStable(cols, func(i, j int) bool {
		if cols[i].priority != cols[j].priority {
			return cols[i].priority < cols[j].priority
		}
		return cols[i].key < cols[j].key
	})
	return cols
}

// selectColumns drops the lowest-priority columns until the table fits width.
func selectColumns(cols []column, data []map[string]any, width int, locale Locale) []column {
	for i := range cols {
		cols[i].width = lipgloss.Width(cols[i].header)
		for _, row := range data {
			if w := lipgloss.Width(locale.FormatCell(row[cols[i].key])); w > cols[i].width {
				cols[i].width = w
			}
		}
		if cols[i].width > 40 {
			cols[i].width = 40
		}
	}

	const padding = 2
	selected := cols
	for len(selected) > 1 {
		total := 0
		for _, col := range selected {
			total += col.width + padding
		}
		if total <= width {
			break
		}
		selected = selected[:len(selected)-1]
	}
	return selected
}

func objectKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		switch v.(type) {
		case map[string]any, []any, []map[string]any:
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := columnPriority[keys[i]], columnPriority[keys[j]]
		if pi == 0 {
			pi = 50
		}
		if pj == 0 {
			pj = 50
		}
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// formatHeader turns snake_case keys into Title Case headers.
func formatHeader(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "id" {
			words[i] = "ID"
			continue
		}
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// MarkdownRenderer writes literal Markdown.
type MarkdownRenderer struct {
	locale Locale
}

// NewMarkdownRenderer creates a Markdown renderer.
func NewMarkdownRenderer(locale Locale) *MarkdownRenderer {
	return &MarkdownRenderer{locale: locale}
}

// RenderResponse renders a success response as Markdown.
func (r *MarkdownRenderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString("## " + resp.Summary + "\n\n")
	}

	switch d := NormalizeData(resp.Data).(type) {
	case []map[string]any:
		if len(d) == 0 {
			b.WriteString("*No results*\n")
			break
		}
		cols := detectColumns(d, preferredColumns(resp.Meta))
		headers := make([]string, len(cols))
		seps := make([]string, len(cols))
		for i, c := range cols {
			headers[i] = c.header
			seps[i] = "---"
		}
		b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
		b.WriteString("| " + strings.Join(seps, " | ") + " |\n")
		for _, item := range d {
			cells := make([]string, len(cols))
			for i, c := range cols {
				cells[i] = strings.ReplaceAll(r.locale.FormatCell(item[c.key]), "|", `\|`)
			}
			b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		}
	case map[string]any:
		for _, key := range objectKeys(d) {
			fmt.Fprintf(&b, "- **%s:** %s\n", formatHeader(key), r.locale.FormatCell(d[key]))
		}
	case nil:
		b.WriteString("*No data*\n")
	default:
		b.WriteString(r.locale.FormatCell(d) + "\n")
	}

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n### Next steps\n\n")
		for _, bc := range resp.Breadcrumbs {
			fmt.Fprintf(&b, "- %s: `%s`\n", bc.Description, bc.Cmd)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response as Markdown.
func (r *MarkdownRenderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder
	b.WriteString("**Error:** " + resp.Error + "\n")
	if resp.Hint != "" {
		b.WriteString("\n*Hint:* " + resp.Hint + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
