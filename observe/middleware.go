package observe

import (
	"context"
	"time"
)

// AttemptFunc is the signature for a single dispatch attempt.
// This is the standard function signature that Middleware wraps.
type AttemptFunc func(ctx context.Context, meta AttemptMeta, payload any) (any, error)

// Middleware wraps a dispatch attempt with observability (tracing, metrics, logging).
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe AttemptFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded and propagated unchanged.
//   - Ownership: payload/result values are passed through without modification.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps an AttemptFunc with tracing, metrics, and logging.
func (m *Middleware) Wrap(fn AttemptFunc) AttemptFunc {
	return func(ctx context.Context, meta AttemptMeta, payload any) (any, error) {
		// Start span
		ctx, span := m.tracer.StartSpan(ctx, meta)

		// Record start time
		start := time.Now()

		// Execute the attempt
		result, err := fn(ctx, meta, payload)

		// Calculate duration
		duration := time.Since(start)

		// End span (records error status if err != nil)
		m.tracer.EndSpan(span, err)

		// Record metrics
		m.metrics.RecordExecution(ctx, meta, duration, err)

		// Log the attempt
		attemptLogger := m.logger.WithAttempt(meta)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}

		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			attemptLogger.Error(ctx, "dispatch attempt failed", fields...)
		} else {
			attemptLogger.Info(ctx, "dispatch attempt completed", fields...)
		}

		return result, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
// This is a convenience function for common use cases.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	tracer := newTracer(obs.Tracer())

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(tracer, metrics, obs.Logger()), nil
}
