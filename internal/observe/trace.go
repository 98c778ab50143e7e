package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the Duplex tracer.
const tracerName = "github.com/duplexvoice/duplex"

// Tracer returns the Duplex [trace.Tracer] from the globally registered
// provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span on the Duplex tracer. The caller must call
// span.End() when done.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartTurnSpan opens the root span for one pipeline generation. Stage
// spans nest under it, so a trace shows the full
// transcribe → generate → synthesize → play timeline of a single turn.
func StartTurnSpan(ctx context.Context, generation uint64) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "duplex.turn",
		trace.WithAttributes(
			attribute.Int64("duplex.generation", int64(generation)),
		),
	)
}

// StartStageSpan opens a child span for one stage of a turn ("stt",
// "reply", "tts", "playback").
func StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "duplex."+stage,
		trace.WithAttributes(
			attribute.String("duplex.stage", stage),
		),
	)
}

// CorrelationID extracts the trace ID from the OTel span context in ctx.
// Returns the empty string when no active span with a valid trace ID exists.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
