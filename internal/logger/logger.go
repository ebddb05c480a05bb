// Package logger provides structured logging using log/slog.
// It sets up a JSON handler with service-level context and carries the
// batch run id and ticker through context.Context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

type ctxKey string

const (
	runIDKey  ctxKey = "run_id"
	tickerKey ctxKey = "ticker"
)

// Init creates and returns a structured logger for the given service.
// The logger outputs JSON to stdout with the service name embedded.
func Init(service string, level slog.Level) *slog.Logger {
	return InitWriter(os.Stdout, service, level)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With(
		slog.String("service", service),
	)

	// Set as default so log/slog.Info() etc. also use structured output
	slog.SetDefault(logger)

	return logger
}

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// NewRunID returns a fresh batch run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID stores a run ID in the context for downstream propagation.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID extracts the run ID from context. Returns "" if not set.
func RunID(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey).(string); ok {
		return v
	}
	return ""
}

// WithTicker stores the ticker being evaluated.
func WithTicker(ctx context.Context, ticker string) context.Context {
	return context.WithValue(ctx, tickerKey, ticker)
}

// Ticker extracts the ticker from context. Returns "" if not set.
func Ticker(ctx context.Context) string {
	if v, ok := ctx.Value(tickerKey).(string); ok {
		return v
	}
	return ""
}

// LogWithRun returns slog attributes for the run ID and ticker in context.
// Usage: slog.Info("msg", logger.LogWithRun(ctx)...)
func LogWithRun(ctx context.Context) []any {
	var attrs []any
	if id := RunID(ctx); id != "" {
		attrs = append(attrs, slog.String("run_id", id))
	}
	if t := Ticker(ctx); t != "" {
		attrs = append(attrs, slog.String("ticker", t))
	}
	return attrs
}
