// Package logger builds the process-wide structured logger.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys used by the logger.
type ContextKey string

// LoggerKey is the context key for the logger instance.
const LoggerKey ContextKey = "logger"

// New creates a console logger at the given level. An empty or unknown
// level selects info.
func New(level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(parseLevel(level)).With().Timestamp().Caller().Logger()
}

// NewWithWriter creates a logger writing JSON to a custom writer.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

// WithContext adds the logger to the context.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from the context or returns a default
// logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return New("")
}
