package utils

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a slog.Logger writing to stderr at the requested
// verbosity, as text or JSON.
func NewLogger(level string, json bool) *slog.Logger {
	var handlerLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		handlerLevel = slog.LevelDebug
	case "warn", "warning":
		handlerLevel = slog.LevelWarn
	case "error":
		handlerLevel = slog.LevelError
	default:
		handlerLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: handlerLevel}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
