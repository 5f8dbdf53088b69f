package ftsync

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with ftsync-specific context.
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
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithTable adds a table field to the logger.
func (l *Logger) WithTable(table string) *Logger {
	return &Logger{
		Logger: l.Logger.With("table", table),
	}
}

// LogRegister logs a table registration.
func (l *Logger) LogRegister(ctx context.Context, table string, fields []string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "register failed",
			"table", table,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "table registered",
			"table", table,
			"fields", fields,
		)
	}
}

// LogBackfill logs a full rebuild of a table index.
func (l *Logger) LogBackfill(ctx context.Context, table string, docs int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "backfill failed",
			"table", table,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "backfill completed",
			"table", table,
			"docs", docs,
			"duration", duration,
		)
	}
}

// LogFlush logs a flush of pending batches into a table index.
func (l *Logger) LogFlush(ctx context.Context, table string, batches, upserts, deletes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed, batches kept for retry",
			"table", table,
			"batches", batches,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "flush completed",
			"table", table,
			"batches", batches,
			"upserts", upserts,
			"deletes", deletes,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, table, query string, hits int, err error) {
	if err != nil {
		l.DebugContext(ctx, "search failed",
			"table", table,
			"query", query,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"table", table,
			"query", query,
			"hits", hits,
		)
	}
}

// LogStale logs a transaction batch dropped without commit or rollback.
func (l *Logger) LogStale(ctx context.Context, txID string, age time.Duration, tables int) {
	l.WarnContext(ctx, "discarding stale transaction batch",
		"tx", txID,
		"age", age,
		"tables", tables,
	)
}
