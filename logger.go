package gomam

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with gomam-specific helpers.
// This keeps field names consistent across operations.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
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

// NewJSONLogger creates a Logger that writes JSON logs to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that writes human-readable logs to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, nil))
}

// WithKind adds the tree kind to the logger.
func (l *Logger) WithKind(k Kind) *Logger {
	return &Logger{
		Logger: l.Logger.With("kind", k.String()),
	}
}

// LogAdd logs an insertion.
func (l *Logger) LogAdd(ctx context.Context, objects int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed",
			"objects", objects,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "add completed",
		"objects", objects,
	)
}

// LogQuery logs a query together with its cost.
func (l *Logger) LogQuery(ctx context.Context, stats QueryStats, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"type", stats.Type.String(),
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "query completed",
		"type", stats.Type.String(),
		"results", stats.Results,
		"distances", stats.Distances,
		"page_reads", stats.PageReads,
		"duration", stats.Duration,
	)
}

// LogBuild logs a bulk build.
func (l *Logger) LogBuild(ctx context.Context, objects int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"objects", objects,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "build completed",
		"objects", objects,
		"duration", duration,
	)
}

// LogClose logs closing an index.
func (l *Logger) LogClose(ctx context.Context, stats Stats, err error) {
	if err != nil {
		l.ErrorContext(ctx, "close failed",
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "index closed",
		"objects", stats.Objects,
		"nodes", stats.Nodes,
		"height", stats.Height,
	)
}
