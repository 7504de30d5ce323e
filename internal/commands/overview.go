package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/campusdesk/campus/internal/api"
	"github.com/campusdesk/campus/internal/appctx"
	"github.com/campusdesk/campus/internal/output"
	"github.com/campusdesk/campus/internal/resource"
	"github.com/campusdesk/campus/internal/school"
)

// overviewSection is one resource's outcome in the overview.
type overviewSection struct {
	Resource string `json:"resource"`
	Status   string `json:"status"`
	Count    *int   `json:"count,omitempty"`
	Data     any    `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewOverviewCmd creates the overview command.
func NewOverviewCmd() *cobra.Command {
	var params paramsFlag
	var limit int

	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Fetch the core resources concurrently",
		Long: `Fetch branches, academic years, students, fee summary, inventory and
tasks concurrently. A failing resource is reported inline and does not
stop the others.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			entries := school.Overview()
			sections := make([]overviewSection, len(entries))

			err := withSpinner(cmd.Context(), app, "Loading overview", func(ctx context.Context) error {
				sections = fetchOverview(ctx, app, entries, query(app, params), limit)
				return nil
			})
			if err != nil {
				return err
			}

			failed := 0
			for _, s := range sections {
				if s.Error != "" {
					failed++
				}
			}
			summary := fmt.Sprintf("%d resources", len(sections))
			if failed > 0 {
				summary = fmt.Sprintf("%d resources, %d failed", len(sections), failed)
			}
			return app.OK(sections, output.WithSummary(summary))
		},
	}

	addParamsFlag(cmd.Flags(), &params)
	cmd.Flags().IntVar(&limit, "concurrency", 4, "Maximum concurrent requests")
	return cmd
}

// fetchOverview loads every entry through its hook. Failures are captured
// per section, so the group never cancels siblings.
func fetchOverview(ctx context.Context, app *appctx.App, entries []school.Entry, q api.Query, limit int) []overviewSection {
	sections := make([]overviewSection, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, e := range entries {
		g.Go(func() error {
			res := app.Service.Hook(e).Load(ctx, q)
			s := overviewSection{Resource: e.Name, Status: res.Status.String()}
			switch {
			case res.Failed():
				s.Error = res.Error
			case res.Meta != nil:
				count := res.Meta.Count
				s.Count = &count
			default:
				if count, ok := resource.ItemCount(res.Data); ok {
					s.Count = &count
				} else {
					s.Data = res.Data
				}
			}
			sections[i] = s
			return nil
		})
	}
	_ = g.Wait()
	return sections
}
