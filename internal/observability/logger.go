package observability

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// NewLogger returns a tint console logger. NO_COLOR disables color.
func NewLogger(w io.Writer, level slog.Leveler, color bool) *slog.Logger {
	if os.Getenv("NO_COLOR") != "" {
		color = false
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
		NoColor:    !color,
	}))
}

// LevelFor maps CLI verbosity to a log level.
func LevelFor(verbose int) slog.Level {
	switch {
	case verbose >= 2:
		return slog.LevelDebug - 4
	case verbose == 1:
		return slog.LevelDebug
	default:
		return slog.LevelWarn
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
