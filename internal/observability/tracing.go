package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// tracerName scopes Corsair spans in exported telemetry.
const tracerName = "github.com/grcorsair/corsair-sub002"

// Tracer returns the process tracer. When no SDK provider is installed the
// global provider is a no-op, so instrumented code pays nothing.
func Tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(tracerName)
}

// NoopTracer returns an explicitly no-op tracer for tests and callers that
// opt out of telemetry.
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer(tracerName)
}

// StartPhase opens a span for one pipeline phase with the mission/target
// attributes every Corsair span carries.
func StartPhase(ctx context.Context, tracer trace.Tracer, phase, missionID, target string) (context.Context, trace.Span) {
	return tracer.Start(ctx, phase, trace.WithAttributes(
		attribute.String("corsair.mission_id", missionID),
		attribute.String("corsair.target", target),
	))
}

// EndPhase closes a span, recording err when the phase failed.
func EndPhase(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
