package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/campusdesk/campus/internal/api"
	"github.com/campusdesk/campus/internal/appctx"
	"github.com/campusdesk/campus/internal/output"
	"github.com/campusdesk/campus/internal/resource"
	"github.com/campusdesk/campus/internal/school"
	"github.com/campusdesk/campus/internal/tui"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	var params paramsFlag
	var all bool
	var room, student int

	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "Fetch a resource",
		Long: `Fetch a list or summary resource from the school API.

Configured branch_id and academic_year_id are sent as the "branch" and
"academic_year" query parameters; -P adds or overrides parameters.`,
		Example: `  campus list students -P class=4
  campus list fees --branch 2
  campus list inventory --all --json
  campus list hostel-allocations --room 12
  campus list fee-payments --student 40`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			entry, err := school.Lookup(args[0])
			if err != nil {
				return err
			}
			q := query(app, params)

			hook, err := selectHook(app.Service, entry, all, room, student)
			if err != nil {
				return err
			}
			var res resource.Result[any]
			err = withSpinner(cmd.Context(), app, "Loading "+entry.Name, func(ctx context.Context) error {
				res = hook.Load(ctx, q)
				return nil
			})
			if err != nil {
				return err
			}
			if res.Failed() {
				return res.Err
			}
			return app.OK(res.Data, listOptions(entry, res)...)
		},
		ValidArgsFunction: completeResources(false),
	}

	addParamsFlag(cmd.Flags(), &params)
	cmd.Flags().BoolVar(&all, "all", false, "Follow pagination and return every item")
	cmd.Flags().IntVar(&room, "room", 0, "Hostel room ID (hostel-allocations)")
	cmd.Flags().IntVar(&student, "student", 0, "Student ID (fee-payments)")
	cmd.MarkFlagsMutuallyExclusive("all", "room", "student")
	return cmd
}

// selectHook picks the hook that serves a list invocation: the entry's
// shared hook, its every-page variant, or a per-parent hook.
func selectHook(svc *school.Service, entry school.Entry, all bool, room, student int) (resource.View[api.Query], error) {
	if room < 0 || student < 0 {
		return nil, output.ErrUsage("--room and --student take a positive ID")
	}
	switch {
	case room > 0:
		if entry.Name != "hostel-allocations" {
			return nil, output.ErrUsageHint("--room filters hostel-allocations only", "Run: campus list hostel-allocations --room "+strconv.Itoa(room))
		}
		return resource.Erase(svc.RoomAllocations(room)), nil
	case student > 0:
		if entry.Name != "fee-payments" {
			return nil, output.ErrUsageHint("--student filters fee-payments only", "Run: campus list fee-payments --student "+strconv.Itoa(student))
		}
		return resource.Erase(svc.StudentPayments(student)), nil
	case all:
		return svc.AllPages(entry)
	}
	return svc.Hook(entry), nil
}

func listOptions(entry school.Entry, res resource.Result[any]) []output.ResponseOption {
	opts := []output.ResponseOption{output.WithMeta("resource", entry.Name)}
	if len(entry.Columns) > 0 {
		opts = append(opts, output.WithMeta("columns", entry.Columns))
	}
	if res.Meta != nil {
		opts = append(opts, output.WithMeta("count", res.Meta.Count))
		if res.Meta.Next != "" {
			opts = append(opts,
				output.WithMeta("next", res.Meta.Next),
				output.WithBreadcrumbs(output.Breadcrumb{
					Action:      "all",
					Cmd:         fmt.Sprintf("campus list %s --all", entry.Name),
					Description: "Fetch every page",
				}),
			)
		}
	}

	if n, ok := resource.ItemCount(res.Data); ok {
		summary := fmt.Sprintf("%d %s", n, entry.Name)
		if res.Meta != nil && res.Meta.Count > n {
			summary = fmt.Sprintf("%d of %d %s", n, res.Meta.Count, entry.Name)
		}
		opts = append(opts, output.WithSummary(summary))
	} else {
		opts = append(opts, output.WithSummary(entry.Name))
	}
	return opts
}

// withSpinner runs fn behind a spinner on interactive terminals, and
// directly otherwise.
func withSpinner(ctx context.Context, app *appctx.App, message string, fn func(ctx context.Context) error) error {
	if !app.IsInteractive() || app.Flags.Verbose > 0 {
		return fn(ctx)
	}
	return tui.NewSpinner(app.Stderr(), message).Run(ctx, fn)
}
