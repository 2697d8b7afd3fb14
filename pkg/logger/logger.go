package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// RequestIDKey is the context key for the request correlation ID.
const RequestIDKey contextKey = "request_id"

// Logger is a structured logger wrapper around slog
type Logger struct {
	*slog.Logger
}

// Options controls handler selection.
type Options struct {
	Env    string // "production" forces JSON at INFO
	Format string // "json" or "text"
	Output io.Writer
}

// New creates a new structured logger
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			// keep only file:line
			if a.Key == slog.SourceKey {
				if src, ok := a.Value.Any().(*slog.Source); ok {
					file := src.File
					if idx := strings.LastIndex(file, "/"); idx >= 0 {
						file = file[idx+1:]
					}
					a.Value = slog.StringValue(fmt.Sprintf("%s:%d", file, src.Line))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch {
	case opts.Env == "production":
		handlerOpts.Level = slog.LevelInfo
		handler = slog.NewJSONHandler(out, handlerOpts)
	case opts.Format == "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	default:
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// NewDefault creates a logger writing to stdout for the given environment.
func NewDefault(env string) *Logger {
	return New(Options{Env: env, Format: os.Getenv("LOG_FORMAT")})
}

// Discard returns a logger that drops every record. Used by tests and by the CLI
// when verbose output is off.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithContext adds context fields to the logger
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if requestID := ctx.Value(RequestIDKey); requestID != nil {
		return &Logger{Logger: l.With("request_id", requestID)}
	}
	return l
}

// WithField creates a new logger with an additional field
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{Logger: l.With(key, value)}
}

// WithError creates a new logger with an error field
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.With("error", err.Error())}
}

// WithDuration creates a new logger with a duration_ms field
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return &Logger{Logger: l.With("duration_ms", d.Milliseconds())}
}
