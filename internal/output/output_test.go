package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{CodeUsage, ExitUsage},
		{CodeNotFound, ExitNotFound},
		{CodeAuth, ExitAuth},
		{CodeForbidden, ExitForbidden},
		{CodeValidation, ExitValidation},
		{CodeNetwork, ExitNetwork},
		{CodeTimeout, ExitTimeout},
		{CodeCircuitOpen, ExitCircuitOpen},
		{CodeAPI, ExitAPI},
		{"something-else", ExitAPI},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFor(tt.code))
		})
	}
}

func TestErrorMessageIncludesHint(t *testing.T) {
	err := ErrUsageHint("No resource given", "Run: campus resources")
	assert.Equal(t, "No resource given: Run: campus resources", err.Error())
	assert.Equal(t, ExitUsage, err.ExitCode())
}

func TestAsErrorWrapsPlainErrors(t *testing.T) {
	plain := errors.New("boom")
	e := AsError(plain)
	assert.Equal(t, CodeAPI, e.Code)
	assert.Equal(t, "boom", e.Message)
	assert.ErrorIs(t, e, plain)
}

func TestAsErrorFindsWrappedError(t *testing.T) {
	inner := ErrTimeout(errors.New("deadline"))
	wrapped := errors.Join(errors.New("outer"), inner)
	assert.Same(t, inner, AsError(wrapped))
	assert.True(t, IsCode(wrapped, CodeTimeout))
	assert.False(t, IsCode(wrapped, CodeNetwork))
}

func TestCircuitOpenKeepsCause(t *testing.T) {
	last := ErrNetwork(errors.New("connection refused"))
	err := ErrCircuitOpen(last)
	assert.Equal(t, CodeCircuitOpen, err.Code)
	assert.ErrorIs(t, err, last)
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatMarkdown, ParseFormat("md"))
	assert.Equal(t, FormatMarkdown, ParseFormat("markdown"))
	assert.Equal(t, FormatStyled, ParseFormat("styled"))
	assert.Equal(t, FormatQuiet, ParseFormat("quiet"))
	assert.Equal(t, FormatAuto, ParseFormat(""))
	assert.Equal(t, FormatAuto, ParseFormat("yaml"))
}

func TestWriterJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf})

	require.NoError(t, w.OK([]map[string]any{{"id": 1, "name": "Main"}}, WithSummary("1 branch")))

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "1 branch", resp.Summary)
}

func TestWriterAutoIsJSONWhenNotTTY(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Writer: &buf})
	require.NoError(t, w.OK(map[string]any{"total": 42}))
	assert.Contains(t, buf.String(), `"ok": true`)
}

func TestWriterQuiet(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatQuiet, Writer: &buf})
	require.NoError(t, w.OK(map[string]any{"total": 42}))
	assert.JSONEq(t, `{"total": 42}`, buf.String())
}

func TestWriterIDsAndCount(t *testing.T) {
	rows := []map[string]any{{"id": 1}, {"id": 2}, {"id": 3}}

	var ids bytes.Buffer
	require.NoError(t, New(Options{Format: FormatIDs, Writer: &ids}).OK(rows))
	assert.Equal(t, "1\n2\n3\n", ids.String())

	var count bytes.Buffer
	require.NoError(t, New(Options{Format: FormatCount, Writer: &count}).OK(rows))
	assert.Equal(t, "3\n", count.String())
}

func TestWriterErr(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf})
	require.NoError(t, w.Err(ErrNotFound("Branch", "7")))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.Equal(t, CodeNotFound, resp.Code)
	assert.Equal(t, 404, resp.Status)
}

func TestWriterJQ(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf, JQ: "map(.name)"})
	require.NoError(t, w.OK([]map[string]any{{"name": "Main"}, {"name": "East"}}))
	assert.JSONEq(t, `["Main", "East"]`, buf.String())
}

func TestFilterInvalidProgram(t *testing.T) {
	_, err := Filter(map[string]any{}, ".[")
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeUsage))
}

func TestFilterMultipleResults(t *testing.T) {
	got, err := Filter([]any{1, 2}, ".[]")
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2)}, got)
}

func TestMarkdownTable(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})
	require.NoError(t, w.OK([]map[string]any{
		{"id": 1, "name": "Main", "balance": 1250.5},
	}, WithSummary("Branches")))

	out := buf.String()
	assert.Contains(t, out, "## Branches")
	assert.Contains(t, out, "| ID | Name | Balance |")
	assert.Contains(t, out, "| 1 | Main | 1,250.50 |")
}

func TestMarkdownTableUsesPreferredColumns(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})
	require.NoError(t, w.OK([]map[string]any{
		{"id": 4, "room_number": "B-12", "capacity": 4, "occupied": 3},
	}, WithMeta("columns", []string{"room_number", "occupied", "capacity"})))

	assert.Contains(t, buf.String(), "| Room Number | Occupied | Capacity | ID |")
}

func TestMarkdownError(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})
	require.NoError(t, w.Err(ErrUsageHint("bad", "try again")))
	assert.Equal(t, "**Error:** bad\n\n*Hint:* try again\n", buf.String())
}

func TestStyledRenderingWithoutTTY(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	w := New(Options{Format: FormatStyled, Writer: &buf})
	require.NoError(t, w.OK([]map[string]any{{"id": 1, "name": "Main"}}))
	out := buf.String()
	assert.Contains(t, out, "Name")
	assert.Contains(t, out, "Main")
}

func TestStyledEmptyList(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatStyled, Writer: &buf})
	require.NoError(t, w.OK([]map[string]any{}))
	assert.True(t, strings.Contains(buf.String(), "(no results)"))
}

func TestFormatHeader(t *testing.T) {
	assert.Equal(t, "ID", formatHeader("id"))
	assert.Equal(t, "Academic Year ID", formatHeader("academic_year_id"))
	assert.Equal(t, "Due Date", formatHeader("due_date"))
}

func TestLocaleFormatting(t *testing.T) {
	en := NewLocale("en_US.UTF-8")
	assert.Equal(t, "12,345", en.FormatNumber(12345))
	assert.Equal(t, "1,234.50", en.FormatNumber(1234.5))

	de := NewLocale("de-DE")
	assert.Equal(t, "12.345", de.FormatNumber(12345))

	fallback := NewLocale("not a locale")
	assert.Equal(t, "12,345", fallback.FormatNumber(12345))

	assert.Equal(t, "yes", en.FormatCell(true))
	assert.Equal(t, "", en.FormatCell(nil))
	assert.Equal(t, "text", en.FormatCell("text"))
}

func TestNormalizeData(t *testing.T) {
	type row struct {
		ID int `json:"id"`
	}
	got := NormalizeData([]row{{ID: 1}})
	assert.Equal(t, []map[string]any{{"id": float64(1)}}, got)

	raw := NormalizeData(json.RawMessage(`[{"id": 2}]`))
	assert.Equal(t, []map[string]any{{"id": float64(2)}}, raw)

	mixed := NormalizeData([]any{1, "a"})
	assert.Equal(t, []any{1, "a"}, mixed)
}
