package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/campus/internal/output"
	"github.com/campusdesk/campus/internal/version"
)

type backend struct {
	mu    sync.Mutex
	calls []string
	body  string
}

func (b *backend) handler(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.calls = append(b.calls, r.Method+" "+r.URL.RequestURI())
	if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		b.body = string(raw)
	}
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/students/":
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 31, "first_name": "Asha"}`))
	case r.URL.Path == "/api/students/" && r.URL.Query().Get("page") == "2":
		_, _ = w.Write([]byte(`{"count": 5, "next": null, "results": [{"id": 3}, {"id": 4}, {"id": 5}]}`))
	case r.URL.Path == "/api/students/":
		next := "http://" + r.Host + "/api/students/?page=2"
		_, _ = w.Write([]byte(`{"count": 5, "next": "` + next + `", "results": [{"id": 1}, {"id": 2}]}`))
	case r.Method == http.MethodDelete && r.URL.Path == "/api/students/7/":
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/api/hostel/allocations/":
		_, _ = w.Write([]byte(`[{"id": 5, "room": 3, "room_number": "B-3", "student": 8, "student_name": "Ravi"}]`))
	case r.URL.Path == "/api/fees/payments/":
		_, _ = w.Write([]byte(`{"count": 1, "next": null, "results": [{"id": 9, "student": 8, "amount": 1200}]}`))
	case r.URL.Path == "/api/branches/":
		_, _ = w.Write([]byte(`[{"id": 1, "name": "North"}]`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": "Not found."}`))
	}
}

func (b *backend) requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// runCLI runs the full command tree against a fake backend in an isolated
// environment.
func runCLI(t *testing.T, args ...string) (int, string, *backend) {
	t.Helper()
	b := &backend{}
	srv := httptest.NewServer(http.HandlerFunc(b.handler))
	t.Cleanup(srv.Close)

	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("CAMPUS_NO_KEYRING", "1")
	t.Setenv("CAMPUS_TOKEN", "")
	t.Setenv("CAMPUS_BASE_URL", srv.URL+"/api")
	t.Setenv("NO_COLOR", "1")

	cmd := NewRootCmd()
	AddCommands(cmd)
	var stdout, stderr bytes.Buffer
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))

	code := run(cmd, args, &stdout)
	return code, stdout.String(), b
}

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestListStudents(t *testing.T) {
	code, out, b := runCLI(t, "list", "students", "--json", "--branch", "2", "-P", "class=4")
	require.Equal(t, 0, code, out)

	resp := decode(t, out)
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, "2 of 5 students", resp["summary"])
	assert.Len(t, resp["data"], 2)

	meta := resp["meta"].(map[string]any)
	assert.Equal(t, float64(5), meta["count"])
	assert.Equal(t, "students", meta["resource"])

	assert.Equal(t, []string{"GET /api/students/?branch=2&class=4"}, b.requests())
}

func TestListAllPages(t *testing.T) {
	code, out, b := runCLI(t, "list", "students", "--all", "--json")
	require.Equal(t, 0, code, out)

	resp := decode(t, out)
	assert.Equal(t, "5 students", resp["summary"])
	assert.Len(t, resp["data"], 5)
	assert.Equal(t, []string{"GET /api/students/", "GET /api/students/?page=2"}, b.requests())
}

func TestListAllRejectsObject(t *testing.T) {
	code, out, b := runCLI(t, "list", "fees", "--all", "--json")
	assert.Equal(t, output.ExitUsage, code)
	assert.Contains(t, decode(t, out)["error"], "single object")
	assert.Empty(t, b.requests())
}

func TestListRoomAllocations(t *testing.T) {
	code, out, b := runCLI(t, "list", "hostel-allocations", "--room", "3", "--json")
	require.Equal(t, 0, code, out)

	resp := decode(t, out)
	assert.Equal(t, "1 hostel-allocations", resp["summary"])
	data := resp["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "B-3", data[0].(map[string]any)["room_number"])
	assert.Equal(t, []string{"GET /api/hostel/allocations/?room=3"}, b.requests())
}

func TestListStudentPayments(t *testing.T) {
	code, out, b := runCLI(t, "list", "payments", "--student", "8", "-q")
	require.Equal(t, 0, code, out)
	assert.JSONEq(t, `[{"id": 9, "student": 8, "amount": 1200}]`, out)
	assert.Equal(t, []string{"GET /api/fees/payments/?student=8"}, b.requests())
}

func TestListScopeFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"room on wrong resource", []string{"list", "students", "--room", "3"}, "--room filters hostel-allocations only"},
		{"student on wrong resource", []string{"list", "rooms", "--student", "8"}, "--student filters fee-payments only"},
		{"negative id", []string{"list", "payments", "--student=-1"}, "--room and --student take a positive ID"},
		{"combined with all", []string{"list", "allocations", "--room", "3", "--all"}, "if any flags in the group"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, b := runCLI(t, append(tt.args, "--json")...)
			assert.Equal(t, output.ExitUsage, code)
			resp := decode(t, out)
			assert.Equal(t, output.CodeUsage, resp["code"])
			assert.Contains(t, resp["error"], tt.want)
			assert.Empty(t, b.requests())
		})
	}
}

func TestListByAlias(t *testing.T) {
	code, out, _ := runCLI(t, "list", "branch", "--json")
	require.Equal(t, 0, code, out)
	assert.Equal(t, "1 branches", decode(t, out)["summary"])
}

func TestListNotFound(t *testing.T) {
	code, out, b := runCLI(t, "list", "exams", "--json")
	assert.Equal(t, output.ExitNotFound, code)

	resp := decode(t, out)
	assert.Equal(t, false, resp["ok"])
	assert.Equal(t, output.CodeNotFound, resp["code"])
	assert.Len(t, b.requests(), 1, "4xx is not retried")
}

func TestListUnknownResource(t *testing.T) {
	code, out, b := runCLI(t, "list", "dragons", "--json")
	assert.Equal(t, output.ExitUsage, code)

	resp := decode(t, out)
	assert.Equal(t, output.CodeUsage, resp["code"])
	assert.Contains(t, resp["hint"], "campus resources")
	assert.Empty(t, b.requests())
}

func TestQuietOutputIsDataOnly(t *testing.T) {
	code, out, _ := runCLI(t, "list", "branches", "-q")
	require.Equal(t, 0, code, out)
	assert.JSONEq(t, `[{"id": 1, "name": "North"}]`, out)
}

func TestJQFilter(t *testing.T) {
	code, out, _ := runCLI(t, "list", "students", "-q", "--jq", "[.[].id]")
	require.Equal(t, 0, code, out)
	assert.JSONEq(t, `[1, 2]`, out)
}

func TestCreateStudent(t *testing.T) {
	code, out, b := runCLI(t, "create", "students", "--json", "-d", `{"first_name": "Asha"}`)
	require.Equal(t, 0, code, out)

	resp := decode(t, out)
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, []string{"POST /api/students/"}, b.requests())
	assert.JSONEq(t, `{"first_name": "Asha"}`, b.body)
}

func TestCreateRequiresBody(t *testing.T) {
	code, out, b := runCLI(t, "create", "students", "--json")
	assert.Equal(t, output.ExitUsage, code)
	assert.Equal(t, output.CodeUsage, decode(t, out)["code"])
	assert.Empty(t, b.requests())
}

func TestResources(t *testing.T) {
	code, out, _ := runCLI(t, "resources", "--json", "--area", "hostel")
	require.Equal(t, 0, code, out)

	resp := decode(t, out)
	assert.Equal(t, "2 resources", resp["summary"])
}

func TestUnknownFlag(t *testing.T) {
	code, out, _ := runCLI(t, "list", "students", "--json", "--nope")
	assert.Equal(t, output.ExitUsage, code)
	assert.Equal(t, "Unknown option: --nope", decode(t, out)["error"])
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, version.Full()+"\n", out)
}

func TestTransformCobraError(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"flag needs an argument: --jq", "--jq requires a value"},
		{"unknown flag: --nope", "Unknown option: --nope"},
		{"unknown shorthand flag: 'z' in -z", "Unknown option: -z"},
		{"unknown command \"lsit\" for \"campus\"\n\nDid you mean this?\n\tlist", `unknown command "lsit" for "campus"`},
		{"accepts 2 arg(s), received 1", "accepts 2 arg(s), received 1"},
		{"if any flags in the group [all room] are set none of the others can be; [all room] were all set", "if any flags in the group [all room] are set none of the others can be; [all room] were all set"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := transformCobraError(errors.New(tt.in))
			var e *output.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, output.CodeUsage, e.Code)
			assert.Equal(t, tt.want, e.Message)
		})
	}

	plain := errors.New("boom")
	assert.Same(t, plain, transformCobraError(plain))
}

func TestOverviewReportsFailuresInline(t *testing.T) {
	code, out, b := runCLI(t, "overview", "--json")
	require.Equal(t, 0, code, out)

	resp := decode(t, out)
	assert.Equal(t, "6 resources, 4 failed", resp["summary"])

	sections := resp["data"].([]any)
	require.Len(t, sections, 6)
	byName := map[string]map[string]any{}
	for _, s := range sections {
		m := s.(map[string]any)
		byName[m["resource"].(string)] = m
	}
	assert.Equal(t, "settled", byName["students"]["status"])
	assert.Equal(t, float64(5), byName["students"]["count"])
	assert.Equal(t, float64(1), byName["branches"]["count"])
	assert.Equal(t, "failed", byName["tasks"]["status"])
	assert.NotEmpty(t, byName["tasks"]["error"])
	assert.Len(t, b.requests(), 6)
}

func TestShowMissingObject(t *testing.T) {
	code, out, b := runCLI(t, "show", "students", "7", "--json")
	assert.Equal(t, output.ExitNotFound, code)
	assert.Equal(t, output.CodeNotFound, decode(t, out)["code"])
	assert.Equal(t, []string{"GET /api/students/7/"}, b.requests())
}
