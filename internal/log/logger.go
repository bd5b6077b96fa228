// Package log configures structured logging over log/slog.
//
// The level is read from LOG_LEVEL (debug, info, warn, error; default
// info). Packages obtain component-scoped loggers with For("storage") and
// log through the standard slog API.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default text handler at the level from LOG_LEVEL.
func Setup() {
	SetupWithLevel(levelFromEnv())
}

// SetupWithLevel installs the default text handler at the given level.
func SetupWithLevel(level slog.Level) {
	slog.SetDefault(slog.New(
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	))
}

// For returns a logger tagged with the given component name.
func For(component string) *slog.Logger {
	return slog.Default().With(FieldComponent, component)
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
