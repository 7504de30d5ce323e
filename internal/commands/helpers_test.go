package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/campus/internal/appctx"
	"github.com/campusdesk/campus/internal/config"
	"github.com/campusdesk/campus/internal/output"
	"github.com/campusdesk/campus/internal/school"
)

func TestParamsFlag(t *testing.T) {
	var p paramsFlag
	require.NoError(t, p.Set("status=open"))
	require.NoError(t, p.Set("class= 4 "))
	require.NoError(t, p.Set("q=a=b"))

	assert.Equal(t, "4 ", p["class"], "values are kept verbatim")
	assert.Equal(t, "a=b", p["q"])
	assert.Equal(t, "class=4 ,q=a=b,status=open", p.String())
	assert.Equal(t, "key=value", p.Type())

	for _, bad := range []string{"status", "=open", " =x"} {
		assert.Error(t, p.Set(bad), bad)
	}
}

func TestQueryAddsConfiguredScope(t *testing.T) {
	app := &appctx.App{Config: &config.Config{BranchID: "2", AcademicYearID: "9"}}

	q := query(app, paramsFlag{"status": "open"})
	assert.Equal(t, "academic_year=9&branch=2&status=open", q.Values().Encode())

	q = query(app, paramsFlag{"branch": "5"})
	assert.Equal(t, "5", q["branch"], "explicit params win over config")

	q = query(&appctx.App{Config: &config.Config{}}, nil)
	assert.Empty(t, q)
}

func TestReadData(t *testing.T) {
	body, err := readData(`{"name":"Asha"}`, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Asha"}, body)

	body, err = readData("-", strings.NewReader(`{"paid":true}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"paid": true}, body)

	path := filepath.Join(t.TempDir(), "body.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"amount": 1200}`), 0o600))
	body, err = readData("@"+path, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"amount": float64(1200)}, body)
}

func TestReadDataErrors(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		want string
	}{
		{"empty", "", "Request body required"},
		{"invalid json", "{nope", "not valid JSON"},
		{"array", "[1,2]", "must be a JSON object"},
		{"missing file", "@" + filepath.Join(t.TempDir(), "absent.json"), "reading request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readData(tt.arg, strings.NewReader(""))
			require.Error(t, err)
			var e *output.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, output.CodeUsage, e.Code)
			assert.Contains(t, e.Message, tt.want)
		})
	}
}

func TestDashboardEntries(t *testing.T) {
	entries, err := dashboardEntries(nil, false)
	require.NoError(t, err)
	assert.Equal(t, school.Overview(), entries)

	entries, err = dashboardEntries(nil, true)
	require.NoError(t, err)
	assert.Len(t, entries, len(school.Entries()))

	entries, err = dashboardEntries([]string{"rooms", "fees"}, false)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "hostel-rooms", entries[0].Name)
	assert.Equal(t, "fee-summary", entries[1].Name)

	_, err = dashboardEntries([]string{"nope"}, false)
	assert.Error(t, err)

	_, err = dashboardEntries([]string{"students"}, true)
	assert.Error(t, err)
}

func TestDashboardLoggerDiscardsWithoutFile(t *testing.T) {
	logger, closeLog, err := dashboardLogger("", nil)
	require.NoError(t, err)
	defer closeLog()
	assert.False(t, logger.Enabled(t.Context(), 12))

	path := filepath.Join(t.TempDir(), "dash.log")
	logger, closeLog, err = dashboardLogger(path, nil)
	require.NoError(t, err)
	logger.Warn("panel failed", "key", "students")
	closeLog()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "panel failed")
	assert.Contains(t, string(data), "key=students")
}

func TestCompleteResources(t *testing.T) {
	names, _ := completeResources(false)(nil, nil, "fee")
	assert.Equal(t, []string{"fee-payments\tfinance", "fee-summary\tfinance"}, names)

	names, _ = completeResources(true)(nil, nil, "fee")
	assert.Equal(t, []string{"fee-payments\tfinance"}, names, "objects cannot be shown by id")

	names, _ = completeResources(false)(nil, []string{"students"}, "")
	assert.Empty(t, names)
}
