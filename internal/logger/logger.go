// Package logger builds the zerolog loggers used by every binary and
// carries them through contexts.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type ContextKey string

const LoggerKey ContextKey = "logger"

// Output formats accepted by NewWithConfig.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns a console logger on stderr at info level.
func New() zerolog.Logger {
	return NewWithConfig("info", FormatConsole)
}

// NewWithWriter returns a JSON logger writing to w.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

// NewWithConfig builds a logger from LOG_LEVEL and LOG_FORMAT style
// values. Unknown levels fall back to info, unknown formats to console.
func NewWithConfig(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if strings.EqualFold(strings.TrimSpace(format), FormatJSON) {
		out = os.Stderr
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Caller().Logger()
}

func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext returns the logger stored in ctx, or New() when there is none.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return New()
}

func WithFields(logger zerolog.Logger, fields map[string]any) zerolog.Logger {
	c := logger.With()
	for k, v := range fields {
		c = c.Interface(k, v)
	}
	return c.Logger()
}
