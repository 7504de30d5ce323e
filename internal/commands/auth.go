package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/campusdesk/campus/internal/appctx"
	"github.com/campusdesk/campus/internal/auth"
	"github.com/campusdesk/campus/internal/config"
	"github.com/campusdesk/campus/internal/output"
)

// NewAuthCmd creates the auth command.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the API token",
		Long: `Manage the bearer token sent to the school API.

Tokens are stored per base URL in the system keyring, or in
~/.config/campus/credentials.json when no keyring is available.
The CAMPUS_TOKEN environment variable overrides any stored token.`,
	}

	cmd.AddCommand(
		newAuthStatusCmd(),
		newAuthTokenCmd(),
	)
	return cmd
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			origin := config.NormalizeBaseURL(app.Config.BaseURL)

			if os.Getenv(auth.TokenEnv) != "" {
				return app.OK(map[string]any{
					"authenticated": true,
					"origin":        origin,
					"source":        auth.TokenEnv,
				}, output.WithSummary("Authenticated via "+auth.TokenEnv+" env var"))
			}

			if !app.Auth.IsAuthenticated() {
				return app.OK(map[string]any{
					"authenticated": false,
					"origin":        origin,
				}, output.WithSummary("Not authenticated"))
			}

			source := "file"
			if app.Auth.Store().UsingKeyring() {
				source = "keyring"
			}
			status := map[string]any{
				"authenticated": true,
				"origin":        origin,
				"source":        source,
			}
			if creds, err := app.Auth.Store().Load(origin); err == nil && !creds.SavedAt.IsZero() {
				status["saved_at"] = creds.SavedAt
			}
			return app.OK(status, output.WithSummary("Authenticated"))
		},
	}
}

func newAuthTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Store or remove the API token",
	}
	cmd.AddCommand(newAuthTokenSetCmd(), newAuthTokenClearCmd())
	return cmd
}

func newAuthTokenSetCmd() *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "set [token]",
		Short: "Store a token for the current base URL",
		Long: `Store a token for the current base URL. Without an argument or
--stdin, a terminal prompts for it with masked input.`,
		Example: `  campus auth token set abc123
  echo "$TOKEN" | campus auth token set --stdin
  campus auth token set`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			var token string
			switch {
			case fromStdin:
				read, err := readToken(cmd.InOrStdin())
				if err != nil {
					return err
				}
				token = read
			case len(args) == 1:
				token = args[0]
			case prompts.interactive(cmd, app):
				origin := config.NormalizeBaseURL(app.Config.BaseURL)
				if creds, err := app.Auth.Store().Load(origin); err == nil && creds.Token != "" {
					replace, err := prompts.confirm("Replace the saved token for "+origin+"?", false)
					if err != nil || !replace {
						return app.OK(map[string]string{
							"status": "kept",
							"origin": origin,
						}, output.WithSummary("Token unchanged"))
					}
				}
				entered, err := prompts.secret("API token for " + origin)
				if err != nil {
					return output.ErrUsageHint("Token required", "Pass it as an argument or use --stdin")
				}
				token = entered
			default:
				return output.ErrUsageHint("Token required", "Pass it as an argument or use --stdin")
			}

			if err := app.Auth.SetToken(token); err != nil {
				return err
			}
			return app.OK(map[string]string{
				"status": "saved",
				"origin": config.NormalizeBaseURL(app.Config.BaseURL),
			}, output.WithSummary("Token saved"))
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the token from stdin")
	return cmd
}

func newAuthTokenClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored token for the current base URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if err := app.Auth.ClearToken(); err != nil {
				return err
			}
			return app.OK(map[string]string{
				"status": "cleared",
				"origin": config.NormalizeBaseURL(app.Config.BaseURL),
			}, output.WithSummary("Token removed"))
		},
	}
}

func readToken(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
