package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusdesk/campus/internal/appctx"
	"github.com/campusdesk/campus/internal/config"
	"github.com/campusdesk/campus/internal/output"
)

// configKeys lists the keys accepted by config set/unset.
var configKeys = map[string]string{
	"base_url":         "string",
	"branch_id":        "string",
	"academic_year_id": "string",
	"timeout":          "duration",
	"retry_threshold":  "int",
	"max_retries":      "int",
	"cache_dir":        "string",
	"format":           "string",
	"stats":            "bool",
	"verbose":          "int",
}

// NewConfigCmd creates the config command for managing configuration.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage campus configuration.

Configuration is loaded from multiple sources with the following precedence:
  flags > env > .env > local > global > defaults

Config locations:
  - Global: ~/.config/campus/config.json
  - Local:  .campus/config.json (cannot set base_url)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetCmd(),
		newConfigUnsetCmd(),
	)
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  "Display the current effective configuration with source information.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	app := appctx.FromContext(cmd.Context())
	cfg := app.Config

	values := map[string]string{
		"base_url":         cfg.BaseURL,
		"branch_id":        cfg.BranchID,
		"academic_year_id": cfg.AcademicYearID,
		"timeout":          cfg.Timeout.Std().String(),
		"retry_threshold":  strconv.Itoa(cfg.RetryThreshold),
		"max_retries":      strconv.Itoa(cfg.MaxRetries),
		"cache_dir":        cfg.CacheDir,
		"format":           cfg.Format,
	}
	if cfg.Stats != nil {
		values["stats"] = strconv.FormatBool(*cfg.Stats)
	}
	if cfg.Verbose != nil {
		values["verbose"] = strconv.Itoa(*cfg.Verbose)
	}

	configData := make(map[string]any, len(values))
	for key, value := range values {
		if value == "" {
			continue
		}
		configData[key] = map[string]string{
			"value":  value,
			"source": string(cfg.Source(key)),
		}
	}

	return app.OK(configData,
		output.WithSummary("Effective configuration"),
		output.WithBreadcrumbs(output.Breadcrumb{
			Action:      "set",
			Cmd:         "campus config set <key> <value>",
			Description: "Set config value",
		}),
	)
}

func newConfigSetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the local or global config file.

Valid keys: ` + strings.Join(sortedConfigKeys(), ", "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			key, value := args[0], args[1]

			parsed, err := parseConfigValue(key, value)
			if err != nil {
				return err
			}
			if key == "base_url" && !global {
				return output.ErrUsageHint("base_url cannot be set in local config", "Use --global")
			}

			path, scope := configPath(global)
			err = editConfigFile(path, func(data map[string]any) {
				data[key] = parsed
			})
			if err != nil {
				return err
			}

			return app.OK(map[string]any{
				"key":    key,
				"value":  parsed,
				"scope":  scope,
				"path":   path,
				"status": "set",
			},
				output.WithSummary(fmt.Sprintf("Set %s = %s (%s)", key, value, scope)),
			)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Set in global config (~/.config/campus/)")
	return cmd
}

func newConfigUnsetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			key := args[0]
			if _, ok := configKeys[key]; !ok {
				return invalidKey(key)
			}

			path, scope := configPath(global)
			err := editConfigFile(path, func(data map[string]any) {
				delete(data, key)
			})
			if err != nil {
				return err
			}

			return app.OK(map[string]any{
				"key":    key,
				"scope":  scope,
				"path":   path,
				"status": "unset",
			},
				output.WithSummary(fmt.Sprintf("Unset %s (%s)", key, scope)),
			)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Unset in global config")
	return cmd
}

func sortedConfigKeys() []string {
	names := make([]string, 0, len(configKeys))
	for k := range configKeys {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func invalidKey(key string) error {
	return output.ErrUsage(fmt.Sprintf("Invalid config key %q. Valid keys: %s", key, strings.Join(sortedConfigKeys(), ", ")))
}

// parseConfigValue validates value for key and returns it in its JSON type.
func parseConfigValue(key, value string) (any, error) {
	kind, ok := configKeys[key]
	if !ok {
		return nil, invalidKey(key)
	}

	switch kind {
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, output.ErrUsage(fmt.Sprintf("%s must be true/false (or 1/0)", key))
		}
		return b, nil
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || (key == "verbose" && n > 2) {
			return nil, output.ErrUsage(fmt.Sprintf("%s must be a non-negative integer", key))
		}
		return n, nil
	case "duration":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return nil, output.ErrUsage(fmt.Sprintf("%s must be a duration like 30s", key))
		}
		return d.String(), nil
	}
	if key == "base_url" {
		return config.NormalizeBaseURL(value), nil
	}
	return value, nil
}

func configPath(global bool) (path, scope string) {
	if global {
		return filepath.Join(config.GlobalConfigDir(), "config.json"), "global"
	}
	return filepath.Join(".campus", "config.json"), "local"
}

// editConfigFile applies edit to the JSON object stored at path.
func editConfigFile(path string, edit func(map[string]any)) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data := make(map[string]any)
	if raw, err := os.ReadFile(path); err == nil { //nolint:gosec // G304: Path is from trusted config location
		_ = json.Unmarshal(raw, &data) // start fresh if invalid
	}
	edit(data)

	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := atomicWriteFile(path, append(out, '\n')); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// atomicWriteFile writes data to a file atomically using temp+rename.
// Files are always created with 0600 permissions (owner read/write only).
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Windows: rename fails when destination exists.
	if err := os.Rename(tmpPath, path); err != nil && runtime.GOOS == "windows" {
		_ = os.Remove(path)
		return os.Rename(tmpPath, path)
	} else { //nolint:revive // two-branch rename pattern
		return err
	}
}
