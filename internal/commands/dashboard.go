package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/campusdesk/campus/internal/appctx"
	"github.com/campusdesk/campus/internal/observability"
	"github.com/campusdesk/campus/internal/output"
	"github.com/campusdesk/campus/internal/resource"
	"github.com/campusdesk/campus/internal/school"
	"github.com/campusdesk/campus/internal/tui/dashboard"
)

// NewDashboardCmd creates the dashboard command.
func NewDashboardCmd() *cobra.Command {
	var (
		params      paramsFlag
		all         bool
		metricsAddr string
		logFile     string
	)

	cmd := &cobra.Command{
		Use:   "dashboard [resource...]",
		Short: "Watch resources in a live terminal view",
		Long: `Open a full-screen view with one panel per resource.

Failed panels retry on their own until three consecutive failures, then
wait for r (retry focused panel) or R (retry all). Without arguments the
overview resources are shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}
			if !app.IsInteractive() {
				return output.ErrUsageHint("dashboard needs a terminal", "Use: campus overview")
			}

			entries, err := dashboardEntries(args, all)
			if err != nil {
				return err
			}

			logger, closeLog, err := dashboardLogger(logFile, app.LogLevel)
			if err != nil {
				return err
			}
			defer closeLog()

			recorders := observability.Recorders{app.Collector}
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				recorders = append(recorders, observability.NewPromRecorder(reg))
				stop, err := serveMetrics(metricsAddr, reg, logger)
				if err != nil {
					return err
				}
				defer stop()
			}

			// Request traces would draw over the alternate screen.
			app.Hooks.SetLevel(0)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			group := resource.NewGroup(ctx, "dashboard")
			defer group.Teardown()
			svc := school.NewService(app.Client, group, logger, recorders, app.Config.RetryThreshold)

			panels := make([]dashboard.Panel, 0, len(entries))
			for _, e := range entries {
				panels = append(panels, dashboard.Panel{Entry: e, Hook: svc.Hook(e)})
			}

			title := "campus " + app.Client.BaseURL()
			model := dashboard.New(group.Context(), title, query(app, params), panels)
			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		},
	}

	addParamsFlag(cmd.Flags(), &params)
	cmd.Flags().BoolVar(&all, "all", false, "Show every resource in the catalog")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file while the dashboard runs")
	return cmd
}

func dashboardEntries(args []string, all bool) ([]school.Entry, error) {
	if all {
		if len(args) > 0 {
			return nil, output.ErrUsage("--all cannot be combined with resource names")
		}
		return school.Entries(), nil
	}
	if len(args) == 0 {
		return school.Overview(), nil
	}
	entries := make([]school.Entry, 0, len(args))
	for _, name := range args {
		e, err := school.Lookup(name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// dashboardLogger returns a file logger, or a discarding one when path is
// empty.
func dashboardLogger(path string, level slog.Leveler) (*slog.Logger, func(), error) {
	if path == "" {
		return observability.Discard(), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return observability.NewLogger(f, level, false), func() { _ = f.Close() }, nil
}

// serveMetrics starts a metrics endpoint and returns its shutdown func.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, output.ErrUsageHint(fmt.Sprintf("cannot listen on %s: %v", addr, err), "Pick a free --metrics-addr")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
