package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// MissionLogger is a structured logger with automatic trace correlation.
// It wraps slog.Logger and stamps every entry with the mission context so
// evidence reviews can line log output up with the hash chain.
type MissionLogger struct {
	logger    *slog.Logger
	missionID string
	target    string
}

// NewMissionLogger creates a logger for one mission. handler controls
// formatting and output; mission context rides along on every entry.
func NewMissionLogger(handler slog.Handler, missionID, target string) *MissionLogger {
	return &MissionLogger{
		logger:    slog.New(handler),
		missionID: missionID,
		target:    target,
	}
}

// NewTextLogger is the CLI default: text handler at the given level.
func NewTextLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Debug logs a debug-level message with trace correlation.
func (l *MissionLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.withContext(ctx).Debug(msg, args...)
}

// Info logs an info-level message with trace correlation.
func (l *MissionLogger) Info(ctx context.Context, msg string, args ...any) {
	l.withContext(ctx).Info(msg, args...)
}

// Warn logs a warning-level message with trace correlation.
func (l *MissionLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.withContext(ctx).Warn(msg, args...)
}

// Error logs an error-level message with trace correlation.
func (l *MissionLogger) Error(ctx context.Context, msg string, args ...any) {
	l.withContext(ctx).Error(msg, args...)
}

// withContext attaches mission attributes plus the active span's trace and
// span ids, when a recording span is present on the context.
func (l *MissionLogger) withContext(ctx context.Context) *slog.Logger {
	logger := l.logger.With(
		slog.String("mission_id", l.missionID),
		slog.String("target", l.target),
	)

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		logger = logger.With(
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}

	return logger
}
