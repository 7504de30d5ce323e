package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campusdesk/campus/internal/appctx"
	"github.com/campusdesk/campus/internal/output"
	"github.com/campusdesk/campus/internal/school"
)

// NewResourcesCmd creates the resources command listing the catalog.
func NewResourcesCmd() *cobra.Command {
	var area string

	cmd := &cobra.Command{
		Use:   "resources",
		Short: "List the resources campus knows about",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			var rows []map[string]any
			for _, e := range school.Entries() {
				if area != "" && e.Area != area {
					continue
				}
				rows = append(rows, map[string]any{
					"name":    e.Name,
					"area":    e.Area,
					"kind":    string(e.Kind),
					"path":    e.Path,
					"aliases": e.Aliases,
				})
			}
			if len(rows) == 0 {
				return output.ErrUsageHint(fmt.Sprintf("No resources in area %q", area), fmt.Sprintf("Areas: %v", school.Areas()))
			}

			return app.OK(rows,
				output.WithSummary(fmt.Sprintf("%d resources", len(rows))),
				output.WithBreadcrumbs(output.Breadcrumb{
					Action:      "list",
					Cmd:         "campus list <resource>",
					Description: "Fetch a resource",
				}),
			)
		},
	}

	cmd.Flags().StringVar(&area, "area", "", "Only show one area (academics, finance, hostel, ...)")
	return cmd
}
