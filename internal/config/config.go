// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/campusdesk/campus/internal/hostutil"
)

// Config holds the resolved configuration.
type Config struct {
	// API settings
	BaseURL        string   `json:"base_url"`
	BranchID       string   `json:"branch_id,omitempty"`
	AcademicYearID string   `json:"academic_year_id,omitempty"`
	Timeout        Duration `json:"timeout"`

	// Retry settings. RetryThreshold applies to resource hooks, MaxRetries
	// to transient HTTP failures inside the API client.
	RetryThreshold int `json:"retry_threshold"`
	MaxRetries     int `json:"max_retries"`

	CacheDir string `json:"cache_dir"`

	// Output settings
	Format string `json:"format"`

	Stats   *bool `json:"stats,omitempty"`
	Verbose *int  `json:"verbose,omitempty"`

	// Sources tracks where each value came from.
	Sources map[string]string `json:"-"`
}

// Duration is a time.Duration that reads "30s" or a number of seconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, ok := parseDuration(v)
	if !ok {
		return fmt.Errorf("invalid duration %s", b)
	}
	*d = Duration(parsed)
	return nil
}

func parseDuration(v any) (time.Duration, bool) {
	switch val := v.(type) {
	case float64:
		if val <= 0 {
			return 0, false
		}
		return time.Duration(val * float64(time.Second)), true
	case string:
		if secs, err := strconv.ParseFloat(val, 64); err == nil {
			return parseDuration(secs)
		}
		d, err := time.ParseDuration(val)
		if err != nil || d <= 0 {
			return 0, false
		}
		return d, true
	default:
		return 0, false
	}
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceGlobal  Source = "global"
	SourceLocal   Source = "local"
	SourceDotenv  Source = "dotenv"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// FlagOverrides holds command-line flag values.
type FlagOverrides struct {
	BaseURL  string
	Branch   string
	Year     string
	Format   string
	CacheDir string
}

// Default returns the default configuration.
func Default() *Config {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}

	return &Config{
		BaseURL:        "http://localhost:8000",
		Timeout:        Duration(30 * time.Second),
		RetryThreshold: 3,
		MaxRetries:     3,
		CacheDir:       filepath.Join(cacheDir, "campus"),
		Format:         "auto",
		Sources:        make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > .env > local > global > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	loadFromFile(cfg, globalConfigPath(), SourceGlobal)
	if path := localConfigPath(); path != "" {
		loadFromFile(cfg, path, SourceLocal)
	}
	if err := loadDotenv(cfg, dotenvPath()); err != nil {
		return nil, err
	}
	LoadFromEnv(cfg)
	ApplyOverrides(cfg, overrides)

	cfg.BaseURL = NormalizeBaseURL(cfg.BaseURL)
	return cfg, nil
}

func loadFromFile(cfg *Config, path string, source Source) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return
	}

	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	// base_url decides where the API token is sent, so a config file in the
	// working directory must not set it.
	if v, ok := fileCfg["base_url"].(string); ok && v != "" {
		if source == SourceLocal {
			fmt.Fprintf(os.Stderr, "warning: ignoring base_url %q from local config at %s\n", v, path)
		} else {
			cfg.BaseURL = v
			cfg.Sources["base_url"] = string(source)
		}
	}
	if v := getStringOrNumber(fileCfg, "branch_id"); v != "" {
		cfg.BranchID = v
		cfg.Sources["branch_id"] = string(source)
	}
	if v := getStringOrNumber(fileCfg, "academic_year_id"); v != "" {
		cfg.AcademicYearID = v
		cfg.Sources["academic_year_id"] = string(source)
	}
	if v, ok := fileCfg["timeout"]; ok {
		if d, ok := parseDuration(v); ok {
			cfg.Timeout = Duration(d)
			cfg.Sources["timeout"] = string(source)
		}
	}
	if v, ok := getPositiveInt(fileCfg, "retry_threshold"); ok {
		cfg.RetryThreshold = v
		cfg.Sources["retry_threshold"] = string(source)
	}
	if v, ok := getPositiveInt(fileCfg, "max_retries"); ok {
		cfg.MaxRetries = v
		cfg.Sources["max_retries"] = string(source)
	}
	if v, ok := fileCfg["cache_dir"].(string); ok && v != "" {
		cfg.CacheDir = v
		cfg.Sources["cache_dir"] = string(source)
	}
	if v, ok := fileCfg["format"].(string); ok && v != "" {
		cfg.Format = v
		cfg.Sources["format"] = string(source)
	}
	if v, ok := fileCfg["stats"].(bool); ok {
		cfg.Stats = &v
		cfg.Sources["stats"] = string(source)
	}
	if v, ok := fileCfg["verbose"].(float64); ok {
		iv := int(v)
		if iv >= 0 && iv <= 2 && v == float64(iv) {
			cfg.Verbose = &iv
			cfg.Sources["verbose"] = string(source)
		}
	}
}

// loadDotenv applies CAMPUS_* entries from a .env file without touching the
// process environment. A missing file is not an error.
func loadDotenv(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	applyEnv(cfg, func(key string) string { return values[key] }, SourceDotenv)
	return nil
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv(cfg *Config) {
	applyEnv(cfg, os.Getenv, SourceEnv)
}

func applyEnv(cfg *Config, getenv func(string) string, source Source) {
	if v := getenv("CAMPUS_BASE_URL"); v != "" {
		if source == SourceDotenv {
			fmt.Fprintf(os.Stderr, "warning: ignoring CAMPUS_BASE_URL from .env\n")
		} else {
			cfg.BaseURL = v
			cfg.Sources["base_url"] = string(source)
		}
	}
	if v := getenv("CAMPUS_BRANCH_ID"); v != "" {
		cfg.BranchID = v
		cfg.Sources["branch_id"] = string(source)
	}
	if v := getenv("CAMPUS_ACADEMIC_YEAR_ID"); v != "" {
		cfg.AcademicYearID = v
		cfg.Sources["academic_year_id"] = string(source)
	}
	if v := getenv("CAMPUS_TIMEOUT"); v != "" {
		if d, ok := parseDuration(v); ok {
			cfg.Timeout = Duration(d)
			cfg.Sources["timeout"] = string(source)
		}
	}
	if v := getenv("CAMPUS_RETRY_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetryThreshold = n
			cfg.Sources["retry_threshold"] = string(source)
		}
	}
	if v := getenv("CAMPUS_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxRetries = n
			cfg.Sources["max_retries"] = string(source)
		}
	}
	if v := getenv("CAMPUS_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
		cfg.Sources["cache_dir"] = string(source)
	}
	if v := getenv("CAMPUS_FORMAT"); v != "" {
		cfg.Format = v
		cfg.Sources["format"] = string(source)
	}
	if v := getenv("CAMPUS_STATS"); v != "" {
		if b, ok := parseEnvBool(v); ok {
			cfg.Stats = &b
			cfg.Sources["stats"] = string(source)
		}
	}
	if v := getenv("CAMPUS_DEBUG"); v != "" {
		level := 1
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 2 {
			level = n
		}
		cfg.Verbose = &level
		cfg.Sources["verbose"] = string(source)
	}
}

// parseEnvBool parses a boolean environment variable strictly.
// Unrecognized values report false in the second result.
func parseEnvBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	default:
		return false, false
	}
}

// getStringOrNumber extracts a value that may be either a string or number in JSON.
func getStringOrNumber(m map[string]any, key string) string {
	switch val := m[key].(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

func getPositiveInt(m map[string]any, key string) (int, bool) {
	v, ok := m[key].(float64)
	if !ok || v <= 0 || v != float64(int(v)) {
		return 0, false
	}
	return int(v), true
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
		cfg.Sources["base_url"] = string(SourceFlag)
	}
	if o.Branch != "" {
		cfg.BranchID = o.Branch
		cfg.Sources["branch_id"] = string(SourceFlag)
	}
	if o.Year != "" {
		cfg.AcademicYearID = o.Year
		cfg.Sources["academic_year_id"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
	if o.CacheDir != "" {
		cfg.CacheDir = o.CacheDir
		cfg.Sources["cache_dir"] = string(SourceFlag)
	}
}

// Source returns where key's value came from.
func (cfg *Config) Source(key string) Source {
	if s, ok := cfg.Sources[key]; ok {
		return Source(s)
	}
	return SourceDefault
}

// Path helpers

func globalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}

// localConfigPath returns .campus/config.json in the working directory, if present.
func localConfigPath() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, ".campus", "config.json")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func dotenvPath() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, ".env")
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "campus")
}

// NormalizeBaseURL adds a scheme to bare hosts and drops trailing slashes.
func NormalizeBaseURL(url string) string {
	return hostutil.Normalize(url)
}
