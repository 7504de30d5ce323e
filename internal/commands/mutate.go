package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campusdesk/campus/internal/appctx"
	"github.com/campusdesk/campus/internal/output"
	"github.com/campusdesk/campus/internal/school"
)

// NewCreateCmd creates the create command.
func NewCreateCmd() *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "create <resource> --data <json>",
		Short: "Create an object",
		Example: `  campus create students --data '{"first_name": "Asha", "roll_number": "12"}'
  campus create payments --data @payment.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			entry, err := school.Lookup(args[0])
			if err != nil {
				return err
			}
			body, err := readData(data, cmd.InOrStdin())
			if err != nil {
				return err
			}

			raw, err := app.Service.Create(cmd.Context(), entry, body)
			if err != nil {
				return err
			}
			return okObject(app, raw, fmt.Sprintf("Created %s", entry.Name))
		},
		ValidArgsFunction: completeResources(true),
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON body, @file or - for stdin")
	return cmd
}

// NewUpdateCmd creates the update command.
func NewUpdateCmd() *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:     "update <resource> <id> --data <json>",
		Short:   "Update an object",
		Example: `  campus update tasks 9 --data '{"status": "done"}'`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			entry, err := school.Lookup(args[0])
			if err != nil {
				return err
			}
			body, err := readData(data, cmd.InOrStdin())
			if err != nil {
				return err
			}

			raw, err := app.Service.Update(cmd.Context(), entry, args[1], body)
			if err != nil {
				return err
			}
			return okObject(app, raw, fmt.Sprintf("Updated %s %s", entry.Name, args[1]))
		},
		ValidArgsFunction: completeResources(true),
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON body, @file or - for stdin")
	return cmd
}

// NewDeleteCmd creates the delete command.
func NewDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete an object",
		Long: `Delete one object. On a terminal the deletion is confirmed first;
--force skips the prompt.`,
		Example: `  campus delete rewards 3
  campus delete students 40 --force`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			entry, err := school.Lookup(args[0])
			if err != nil {
				return err
			}

			if !force && prompts.interactive(cmd, app) {
				ok, err := prompts.confirmDangerous(fmt.Sprintf("Delete %s %s?", entry.Name, args[1]))
				if err != nil || !ok {
					return app.OK(map[string]string{
						"resource": entry.Name,
						"id":       args[1],
						"status":   "canceled",
					}, output.WithSummary("Nothing deleted"))
				}
			}

			if err := app.Service.Delete(cmd.Context(), entry, args[1]); err != nil {
				return err
			}
			return app.OK(map[string]string{
				"resource": entry.Name,
				"id":       args[1],
				"status":   "deleted",
			}, output.WithSummary(fmt.Sprintf("Deleted %s %s", entry.Name, args[1])))
		},
		ValidArgsFunction: completeResources(true),
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Delete without asking")
	return cmd
}

func okObject(app *appctx.App, raw json.RawMessage, summary string) error {
	var data any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return output.ErrDecode(err)
		}
	}
	return app.OK(data, output.WithSummary(summary))
}
