package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/campus/internal/appctx"
	"github.com/campusdesk/campus/internal/auth"
	"github.com/campusdesk/campus/internal/config"
	"github.com/campusdesk/campus/internal/output"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec.mu.Lock()
	rec.calls = append(rec.calls, r.Method+" "+r.URL.RequestURI())
	rec.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (rec *recorder) requests() []string {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]string(nil), rec.calls...)
}

// newTestApp builds a JSON-mode app against srv with isolated config and
// credential storage.
func newTestApp(t *testing.T, srv *httptest.Server) (*appctx.App, *bytes.Buffer) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("CAMPUS_NO_KEYRING", "1")
	t.Setenv(auth.TokenEnv, "")

	cfg := config.Default()
	cfg.BaseURL = srv.URL + "/api"
	cfg.CacheDir = t.TempDir()

	var out bytes.Buffer
	app, err := appctx.NewApp(cfg, appctx.WithIO(&out, io.Discard))
	require.NoError(t, err)
	app.Flags.JSON = true
	app.ApplyFlags()
	return app, &out
}

func execute(t *testing.T, app *appctx.App, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.ExecuteContext(appctx.WithApp(context.Background(), app))
}

// stubPrompts replaces the interactive forms for the duration of a test.
func stubPrompts(t *testing.T, interactive bool, confirm bool, secret string) *[]string {
	t.Helper()
	saved := prompts
	t.Cleanup(func() { prompts = saved })

	var asked []string
	prompts.interactive = func(*cobra.Command, *appctx.App) bool { return interactive }
	prompts.confirm = func(message string, _ bool) (bool, error) {
		asked = append(asked, message)
		return confirm, nil
	}
	prompts.confirmDangerous = func(message string) (bool, error) {
		asked = append(asked, message)
		return confirm, nil
	}
	prompts.secret = func(title string) (string, error) {
		asked = append(asked, title)
		if secret == "" {
			return "", errors.New("user aborted")
		}
		return secret, nil
	}
	return &asked
}

func decodeOutput(t *testing.T, out *bytes.Buffer) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &v), out.String())
	return v
}

func TestDeleteConfirmsOnTerminal(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()
	app, out := newTestApp(t, srv)
	asked := stubPrompts(t, true, true, "")

	require.NoError(t, execute(t, app, NewDeleteCmd(), "rewards", "3"))
	assert.Equal(t, []string{"Delete rewards 3?"}, *asked)
	assert.Equal(t, []string{"DELETE /api/rewards/3/"}, rec.requests())
	assert.Equal(t, "Deleted rewards 3", decodeOutput(t, out)["summary"])
}

func TestDeleteDeclined(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()
	app, out := newTestApp(t, srv)
	asked := stubPrompts(t, true, false, "")

	require.NoError(t, execute(t, app, NewDeleteCmd(), "rewards", "3"))
	assert.Len(t, *asked, 1)
	assert.Empty(t, rec.requests())

	resp := decodeOutput(t, out)
	assert.Equal(t, "Nothing deleted", resp["summary"])
	assert.Equal(t, "canceled", resp["data"].(map[string]any)["status"])
}

func TestDeleteForceSkipsPrompt(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()
	app, _ := newTestApp(t, srv)
	asked := stubPrompts(t, true, false, "")

	require.NoError(t, execute(t, app, NewDeleteCmd(), "rewards", "3", "--force"))
	assert.Empty(t, *asked)
	assert.Equal(t, []string{"DELETE /api/rewards/3/"}, rec.requests())
}

func TestDeleteWithoutTerminalDoesNotPrompt(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()
	app, _ := newTestApp(t, srv)
	asked := stubPrompts(t, false, false, "")

	require.NoError(t, execute(t, app, NewDeleteCmd(), "students", "7"))
	assert.Empty(t, *asked)
	assert.Equal(t, []string{"DELETE /api/students/7/"}, rec.requests())
}

func TestCanPromptNeedsTerminal(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()
	app, _ := newTestApp(t, srv)

	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("token\n"))
	assert.False(t, canPrompt(cmd, app))
}

func TestTokenSetPromptsOnTerminal(t *testing.T) {
	srv := httptest.NewServer(&recorder{})
	defer srv.Close()
	app, out := newTestApp(t, srv)
	asked := stubPrompts(t, true, true, "s3cret")

	require.NoError(t, execute(t, app, newAuthTokenSetCmd()))
	origin := config.NormalizeBaseURL(app.Config.BaseURL)
	assert.Equal(t, []string{"API token for " + origin}, *asked)
	assert.Equal(t, "Token saved", decodeOutput(t, out)["summary"])

	creds, err := app.Auth.Store().Load(origin)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", creds.Token)
}

func TestTokenSetKeepsExistingWhenDeclined(t *testing.T) {
	srv := httptest.NewServer(&recorder{})
	defer srv.Close()
	app, out := newTestApp(t, srv)
	require.NoError(t, app.Auth.SetToken("old"))
	asked := stubPrompts(t, true, false, "new")

	require.NoError(t, execute(t, app, newAuthTokenSetCmd()))
	require.Len(t, *asked, 1)
	assert.Contains(t, (*asked)[0], "Replace the saved token")
	assert.Equal(t, "Token unchanged", decodeOutput(t, out)["summary"])

	token, err := app.Auth.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "old", token)
}

func TestTokenSetWithoutTerminalNeedsToken(t *testing.T) {
	srv := httptest.NewServer(&recorder{})
	defer srv.Close()
	app, _ := newTestApp(t, srv)
	asked := stubPrompts(t, false, true, "s3cret")

	err := execute(t, app, newAuthTokenSetCmd())
	require.Error(t, err)
	assert.True(t, output.IsCode(err, output.CodeUsage))
	assert.Empty(t, *asked)
}

func TestTokenSetAbortedPrompt(t *testing.T) {
	srv := httptest.NewServer(&recorder{})
	defer srv.Close()
	app, _ := newTestApp(t, srv)
	stubPrompts(t, true, true, "")

	err := execute(t, app, newAuthTokenSetCmd())
	assert.True(t, output.IsCode(err, output.CodeUsage))
}
