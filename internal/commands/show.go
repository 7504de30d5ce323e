package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campusdesk/campus/internal/appctx"
	"github.com/campusdesk/campus/internal/output"
	"github.com/campusdesk/campus/internal/school"
)

// NewShowCmd creates the show command.
func NewShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "show <resource> <id>",
		Short:   "Show one object",
		Example: "  campus show students 42",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			entry, err := school.Lookup(args[0])
			if err != nil {
				return err
			}

			raw, err := app.Service.Show(cmd.Context(), entry, args[1])
			if err != nil {
				return err
			}
			var data any
			if err := json.Unmarshal(raw, &data); err != nil {
				return output.ErrDecode(err)
			}
			return app.OK(data,
				output.WithSummary(fmt.Sprintf("%s %s", entry.Name, args[1])),
				output.WithBreadcrumbs(
					output.Breadcrumb{
						Action:      "update",
						Cmd:         fmt.Sprintf("campus update %s %s --data '{...}'", entry.Name, args[1]),
						Description: "Update this object",
					},
				),
			)
		},
		ValidArgsFunction: completeResources(true),
	}
}
