// Package observe provides OpenTelemetry-based observability for dispatch attempts.
//
// It is a pure instrumentation library: no retry logic, no transport, no I/O
// beyond exporter setup. Consumers wire the Observer into dispatch.Dispatcher
// or the HTTP transport that backs it.
//
// # Overview
//
// observe provides three observability pillars:
//   - Tracing: OpenTelemetry spans with per-attempt metadata attributes
//   - Metrics: Attempt counters and duration histograms
//   - Logging: Structured JSON logging with automatic field redaction
//
// # Core Components
//
//   - [Observer]: Main facade providing Tracer, Meter, and Logger access
//   - [Tracer]: Span creation with attempt metadata as span attributes
//   - [Metrics]: Records attempt counts, errors, and duration histograms
//   - [Logger]: Structured JSON logging with sensitive field redaction
//   - [Middleware]: Wraps AttemptFunc with complete observability
//
// # Quick Start
//
//	cfg := observe.Config{
//	    ServiceName: "dispatch-service",
//	    Version:     "1.0.0",
//	    Tracing:     observe.TracingConfig{Enabled: true, Exporter: "otlp", SamplePct: 1.0},
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	}
//
//	obs, err := observe.NewObserver(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer obs.Shutdown(ctx)
//
//	// Create middleware and wrap the transport's attempt function
//	mw, _ := observe.MiddlewareFromObserver(obs)
//	wrappedSend := mw.Wrap(transport.Send)
//
//	// Send - automatically traced, metered, and logged
//	outcome, err := wrappedSend(ctx, attemptMeta, payload)
//
// # Telemetry Details
//
// Tracing creates spans with a deterministic name: "dispatch.attempt".
//
// Span attributes include:
//   - dispatch.endpoint: Endpoint identifier the attempt was issued against (required)
//   - dispatch.attempt: 1-based attempt number within the request
//   - dispatch.variant: Policy extra variant (none|backoff|hedge|circuit_breaker), if set
//   - dispatch.policy: Human-readable policy name, if set
//   - dispatch.error: Boolean indicating attempt failure
//
// Metrics recorded:
//   - dispatch.attempt.total (counter): Total attempts by endpoint
//   - dispatch.attempt.errors (counter): Total failed attempts by endpoint
//   - dispatch.attempt.duration_ms (histogram): Attempt duration distribution in milliseconds
//
// All metrics include labels: dispatch.endpoint, dispatch.attempt, dispatch.variant (if set).
//
// # Sensitive Field Redaction
//
// The logger automatically redacts these fields to prevent credential leakage:
//   - payload
//   - password, secret, token
//   - api_key, apiKey, credential, auth_header
//
// See [RedactedFields] for the complete list.
//
// # Exporter Configuration
//
// Tracing exporters:
//   - "otlp": OTLP gRPC (requires OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_TRACES_ENDPOINT)
//   - "jaeger": Jaeger via OTLP (requires OTEL_EXPORTER_JAEGER_ENDPOINT)
//   - "stdout": Console output for development
//   - "none" or "": Disabled (no-op)
//
// Metrics exporters:
//   - "otlp": OTLP gRPC (requires OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_METRICS_ENDPOINT)
//   - "prometheus": Prometheus scrape endpoint
//   - "stdout": Console output for development
//   - "none" or "": Disabled (no-op)
//
// # Thread Safety
//
// All exported types are safe for concurrent use after construction:
//   - [Observer]: Tracer(), Meter(), Logger() are safe; Shutdown() is idempotent
//   - [Tracer]: StartSpan() and EndSpan() are safe for concurrent use
//   - [Metrics]: RecordExecution() is safe for concurrent use
//   - [Logger]: All logging methods are mutex-protected
//   - [Middleware]: Wrap() returns a thread-safe AttemptFunc
//
// # Error Handling
//
// Configuration errors (use errors.Is for checking):
//   - [ErrMissingServiceName]: Config.ServiceName is empty
//   - [ErrInvalidSamplePct]: Tracing.SamplePct not in [0.0, 1.0]
//   - [ErrInvalidTracingExporter]: Unknown tracing exporter name
//   - [ErrInvalidMetricsExporter]: Unknown metrics exporter name
//   - [ErrInvalidLogLevel]: Unknown log level
//
// Exporter errors:
//   - [ErrEndpointNotConfigured]: Required endpoint env var not set
//
// Runtime errors:
//   - [ErrNilObserver]: Nil Observer passed to function
//   - [ErrMissingEndpoint]: AttemptMeta.Endpoint is empty
//
// Example error handling:
//
//	obs, err := observe.NewObserver(ctx, cfg)
//	if errors.Is(err, observe.ErrMissingServiceName) {
//	    // Handle missing service name
//	}
//	if errors.Is(err, observe.ErrEndpointNotConfigured) {
//	    // Handle missing OTLP endpoint
//	}
//
// # Integration
//
// observe is consumed by:
//   - dispatch.Dispatcher: wraps each attempt with Middleware for spans/metrics/logs
//   - HTTP transports: instrument outbound sends per endpoint
//   - health handlers: surface readiness alongside request telemetry
package observe
