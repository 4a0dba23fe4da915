package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// AttemptMeta contains metadata about one dispatch attempt for telemetry purposes.
type AttemptMeta struct {
	Endpoint string // Endpoint identifier this attempt was issued against (required)
	Variant  string // Policy extra variant: none|backoff|hedge|circuit_breaker
	Attempt  int    // 1-based attempt number within the request (hedge siblings share the primary's number)
	Policy   string // Optional human-readable policy name for dashboards
}

// SpanName returns the deterministic span name for a dispatch attempt.
func (m AttemptMeta) SpanName() string {
	return "dispatch.attempt"
}

// Tracer wraps OpenTelemetry tracing with dispatch-attempt span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: StartSpan derives the span's context from ctx; it has no error result.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for one dispatch attempt.
	StartSpan(ctx context.Context, meta AttemptMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// newTracer creates a new Tracer wrapping the given OpenTelemetry tracer.
func newTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with attempt metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta AttemptMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("dispatch.endpoint", meta.Endpoint),
		attribute.Int("dispatch.attempt", meta.Attempt),
		attribute.Bool("dispatch.error", false), // Will be updated in EndSpan if error
	}

	if meta.Variant != "" {
		attrs = append(attrs, attribute.String("dispatch.variant", meta.Variant))
	}
	if meta.Policy != "" {
		attrs = append(attrs, attribute.String("dispatch.policy", meta.Policy))
	}

	ctx, span := t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)

	return ctx, span
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("dispatch.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// newNoopTracer creates a no-op tracer.
func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta AttemptMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
