// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"

	"github.com/campusdesk/campus/internal/api"
	"github.com/campusdesk/campus/internal/auth"
	"github.com/campusdesk/campus/internal/config"
	"github.com/campusdesk/campus/internal/observability"
	"github.com/campusdesk/campus/internal/output"
	"github.com/campusdesk/campus/internal/resilience"
	"github.com/campusdesk/campus/internal/resource"
	"github.com/campusdesk/campus/internal/school"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config  *config.Config
	Auth    *auth.Manager
	Client  *api.Client
	Service *school.Service
	Output  *output.Writer

	// Observability
	Collector *observability.SessionCollector
	Hooks     *observability.CLIHooks
	Logger    *slog.Logger
	LogLevel  *slog.LevelVar

	// Flags holds the global flag values
	Flags GlobalFlags

	stdout io.Writer
	stderr io.Writer
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON   bool
	Quiet  bool
	MD     bool // Literal Markdown syntax output
	Styled bool // Force ANSI styled output (even when piped)
	IDs    bool
	Count  bool
	JQ     string

	// Context flags
	BaseURL string
	Branch  string
	Year    string

	// Behavior flags
	Verbose  int // 0=off, 1=fetches, 2=fetches+requests (stacks with -v -v or -vv)
	Stats    bool
	CacheDir string
}

// optionalToken lets unauthenticated requests through; the backend
// answers 401 when it needs a token.
type optionalToken struct {
	mgr *auth.Manager
}

func (o optionalToken) Token(ctx context.Context) (string, error) {
	token, err := o.mgr.Token(ctx)
	if output.IsCode(err, output.CodeAuth) {
		return "", nil
	}
	return token, err
}

// Option adjusts NewApp.
type Option func(*appOptions)

type appOptions struct {
	stdout, stderr io.Writer
}

// WithIO directs output and diagnostics away from the process streams.
func WithIO(stdout, stderr io.Writer) Option {
	return func(o *appOptions) {
		o.stdout = stdout
		o.stderr = stderr
	}
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	o := appOptions{stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	return newApp(cfg, auth.NewManager(cfg), o.stdout, o.stderr)
}

func newApp(cfg *config.Config, authMgr *auth.Manager, stdout, stderr io.Writer) (*App, error) {
	// Collector always runs to gather stats; hooks control trace verbosity.
	// Level 0 initially; ApplyFlags sets the actual level from -v flags.
	collector := observability.NewSessionCollector()
	traceWriter := observability.NewTraceWriterTo(stderr)
	hooks := observability.NewCLIHooks(0, collector, traceWriter)

	level := new(slog.LevelVar)
	level.Set(observability.LevelFor(0))
	logger := observability.NewLogger(stderr, level, isTerminal(stderr))

	breaker := resilience.NewBreaker(
		resilience.NewFileStore(filepath.Join(cfg.CacheDir, "resilience"), breakerName(cfg.BaseURL)),
		resilience.DefaultBreakerConfig(),
	)

	client, err := api.NewClient(api.Options{
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout.Std(),
		MaxRetries: cfg.MaxRetries,
		Tokens:     optionalToken{mgr: authMgr},
		Breaker:    breaker,
		Cache:      api.NewCache(cfg.CacheDir),
		Observer:   hooks,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	group := resource.NewGroup(context.Background(), "cli")
	service := school.NewService(client, group, logger, hooks, cfg.RetryThreshold)

	return &App{
		Config:    cfg,
		Auth:      authMgr,
		Client:    client,
		Service:   service,
		Collector: collector,
		Hooks:     hooks,
		Logger:    logger,
		LogLevel:  level,
		Output: output.New(output.Options{
			Format: output.ParseFormat(cfg.Format),
			Writer: stdout,
			Locale: output.DetectLocale(),
		}),
		stdout: stdout,
		stderr: stderr,
	}, nil
}

// breakerName derives the breaker state file name from the backend host,
// so processes talking to the same backend share one breaker.
func breakerName(baseURL string) string {
	host := "default"
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return "api-" + strings.NewReplacer(":", "_", "/", "_").Replace(host)
}

// ApplyFlags applies global flag values to the app configuration.
func (a *App) ApplyFlags() {
	format := output.ParseFormat(a.Config.Format)
	// Order matters: specific modes first
	switch {
	case a.Flags.IDs:
		format = output.FormatIDs
	case a.Flags.Count:
		format = output.FormatCount
	case a.Flags.Quiet:
		format = output.FormatQuiet
	case a.Flags.JSON:
		format = output.FormatJSON
	case a.Flags.Styled:
		format = output.FormatStyled
	case a.Flags.MD:
		format = output.FormatMarkdown
	}
	a.Output = output.New(output.Options{
		Format: format,
		Writer: a.stdout,
		JQ:     a.Flags.JQ,
		Locale: output.DetectLocale(),
	})

	verbose := a.Flags.Verbose
	if a.Config.Verbose != nil && *a.Config.Verbose > verbose {
		verbose = *a.Config.Verbose
	}
	if a.Config.Stats != nil && *a.Config.Stats {
		a.Flags.Stats = true
	}

	if a.Hooks != nil {
		a.Hooks.SetLevel(verbose)
	}
	if a.LogLevel != nil {
		a.LogLevel.Set(observability.LevelFor(verbose))
	}
}

// OK outputs a success response, including stats if --stats is set.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	if a.Flags.Stats && a.Collector != nil {
		opts = append(opts, output.WithMeta("stats", statsMeta(a.Collector.Summary())))
	}
	return a.Output.OK(data, opts...)
}

// Err outputs an error response with the user-facing message, printing
// stats to stderr if --stats is set.
func (a *App) Err(err error) error {
	if err == nil {
		return nil
	}
	e := *output.AsError(err)
	switch e.Code {
	case output.CodeUsage, output.CodeAuth, output.CodeForbidden, output.CodeNotFound:
	default:
		e.Message = resource.Describe(err)
	}
	if outputErr := a.Output.Err(&e); outputErr != nil {
		return outputErr
	}

	if a.Flags.Stats && a.Collector != nil && !a.isMachineOutput() {
		a.printStats(a.Collector.Summary())
	}
	return nil
}

// isMachineOutput reports whether output is meant for programs, from
// flags or config.
func (a *App) isMachineOutput() bool {
	if a.Flags.Quiet || a.Flags.IDs || a.Flags.Count || a.Flags.JQ != "" {
		return true
	}
	return a.Config != nil && a.Config.Format == "quiet"
}

func statsMeta(m observability.SessionMetrics) map[string]any {
	return map[string]any{
		"duration_ms":     m.EndTime.Sub(m.StartTime).Milliseconds(),
		"requests":        m.TotalRequests,
		"failed_requests": m.FailedRequests,
		"retries":         m.TotalRetries,
		"fetches":         m.Fetches,
		"fetch_failures":  m.FetchFailures,
		"circuits_opened": m.CircuitsOpened,
	}
}

// printStats outputs a compact stats line to stderr.
func (a *App) printStats(stats observability.SessionMetrics) {
	var parts []string

	duration := stats.EndTime.Sub(stats.StartTime)
	if duration < time.Second {
		parts = append(parts, fmt.Sprintf("%dms", duration.Milliseconds()))
	} else {
		parts = append(parts, fmt.Sprintf("%.1fs", duration.Seconds()))
	}

	if stats.TotalRequests == 1 {
		parts = append(parts, "1 request")
	} else if stats.TotalRequests > 1 {
		parts = append(parts, fmt.Sprintf("%d requests", stats.TotalRequests))
	}

	if stats.TotalRetries == 1 {
		parts = append(parts, "1 retry")
	} else if stats.TotalRetries > 1 {
		parts = append(parts, fmt.Sprintf("%d retries", stats.TotalRetries))
	}

	if stats.FetchFailures > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", stats.FetchFailures))
	}
	if stats.CircuitsOpened > 0 {
		parts = append(parts, fmt.Sprintf("%d blocked", stats.CircuitsOpened))
	}

	fmt.Fprintf(a.stderr, "\nStats: %s\n", strings.Join(parts, " | "))
}

// IsInteractive returns true if the terminal supports interactive TUI.
func (a *App) IsInteractive() bool {
	if a.Flags.JSON || a.Flags.Quiet || a.Flags.IDs || a.Flags.Count || a.Flags.JQ != "" {
		return false
	}
	return isTerminal(a.stdout)
}

// Stderr returns the app's diagnostic stream.
func (a *App) Stderr() io.Writer { return a.stderr }

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
