package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// WithContext stores logger in ctx.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger keeps the component of logger.
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPEnd logs a completed request at a level matching its status.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, requestID string, statusCode int, elapsed time.Duration) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithRequestID(requestID).
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithHTTPResponse(statusCode, elapsed.Milliseconds())

	sl.logger.Logger.Log(ctx, level, "HTTP request completed", sl.logger.stamp(fields.ToSlice())...)
}

// LogRefresh records the outcome of one refresh of a cache key.
func (sl *StructuredLogger) LogRefresh(ctx context.Context, key string, seq uint64, trigger string, elapsed time.Duration, err error) {
	fields := NewFields().
		WithRefresh(key, seq, trigger).
		WithOperation(OpRefresh).
		WithError(err)
	fields[FieldDuration] = elapsed.Milliseconds()

	if err != nil {
		sl.logger.WarnContext(ctx, "Refresh failed", fields.ToSlice()...)
		return
	}
	sl.logger.DebugContext(ctx, "Refresh completed", fields.ToSlice()...)
}
