package rangestream

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/hupe1980/rangestream/stream"
)

// Logger wraps slog.Logger with planner-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithQuery adds the query id to the logger.
func (l *Logger) WithQuery(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("query", id),
	}
}

// WithField adds a field name to the logger.
func (l *Logger) WithField(field string) *Logger {
	return &Logger{
		Logger: l.Logger.With("field", field),
	}
}

// LogStreamPlans logs the outcome of planning, followed by the stream
// classification tree one line at a time.
func (l *Logger) LogStreamPlans(ctx context.Context, c stream.Context, debug string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "planning failed",
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "query returned a stream",
		"context", c.String(),
	)
	l.LogContextDebug(ctx, debug)
}

// LogContextDebug writes a ContextDebug dump at debug level.
func (l *Logger) LogContextDebug(ctx context.Context, debug string) {
	if !l.Enabled(ctx, slog.LevelDebug) {
		return
	}
	for line := range strings.SplitSeq(debug, "\n") {
		if line != "" {
			l.DebugContext(ctx, line)
		}
	}
}

// LogPlans logs the end of plan iteration.
func (l *Logger) LogPlans(ctx context.Context, emitted, pruned int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "plan iteration failed",
			"emitted", emitted,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "plan iteration completed",
			"emitted", emitted,
			"pruned", pruned,
		)
	}
}

// LogFullTableScan logs the fallback to a full scan of the date range.
func (l *Logger) LogFullTableScan(ctx context.Context, c stream.Context, begin, end string) {
	l.WarnContext(ctx, "index cannot constrain query, scanning full date range",
		"context", c.String(),
		"begin", begin,
		"end", end,
	)
}

// LogCloseFailure logs a resource that failed to close.
func (l *Logger) LogCloseFailure(ctx context.Context, resource string, err error) {
	l.WarnContext(ctx, "close failed",
		"resource", resource,
		"error", err,
	)
}
