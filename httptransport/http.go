// Package httptransport is the reference dispatch.Transport implementation
// described in SPEC_FULL §4.7: it sends each attempt as an HTTP request,
// maps status codes to dispatch.Outcome, and reuses the teacher's
// resilience and secret packages for per-endpoint concurrency limiting and
// bearer-token resolution instead of hand-rolling either.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonwraymond/resilientdispatch/cache"
	"github.com/jonwraymond/resilientdispatch/dispatch"
	"github.com/jonwraymond/resilientdispatch/resilience"
	"github.com/jonwraymond/resilientdispatch/secret"
)

// EndpointConfig describes one dispatch.Endpoint's HTTP binding.
type EndpointConfig struct {
	// URL is the absolute request URL for this endpoint.
	URL string

	// BearerToken, if non-empty, is resolved through a secret.Resolver and
	// sent as an "Authorization: Bearer <value>" header. It may itself be
	// a literal value, an ${ENV_VAR} reference, or a "secretref:..." value
	// understood by the Resolver.
	BearerToken string

	// MaxConcurrent bounds how many in-flight requests this endpoint will
	// accept at once. Zero uses resilience.BulkheadConfig's default of 10.
	MaxConcurrent int

	// RateLimit, if positive, caps requests per second to this endpoint
	// via a token-bucket (resilience.RateLimiter). Zero disables it.
	RateLimit float64

	// RateBurst is the token bucket's burst size when RateLimit is set.
	// Zero uses resilience.RateLimiterConfig's default of 10.
	RateBurst int
}

// HTTPTransport implements dispatch.Transport over net/http. Each
// dispatch.Endpoint must be a key of the endpoints map supplied to New;
// any other Endpoint value causes Send to return an error.
type HTTPTransport struct {
	client    *http.Client
	endpoints map[dispatch.Endpoint]EndpointConfig
	resolver  *secret.Resolver
	executors map[dispatch.Endpoint]*resilience.Executor
	cache     *cache.CacheMiddleware
}

// Option configures an HTTPTransport at construction time.
type Option func(*HTTPTransport)

// New constructs an HTTPTransport. resolver may be nil, in which case
// BearerToken values are sent verbatim (SPEC_FULL §4.7).
func New(endpoints map[dispatch.Endpoint]EndpointConfig, resolver *secret.Resolver, client *http.Client, opts ...Option) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	t := &HTTPTransport{
		client:    client,
		endpoints: endpoints,
		resolver:  resolver,
		executors: make(map[dispatch.Endpoint]*resilience.Executor, len(endpoints)),
	}
	for ep, cfg := range endpoints {
		executorOpts := []resilience.ExecutorOption{
			resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: cfg.MaxConcurrent})),
		}
		if cfg.RateLimit > 0 {
			executorOpts = append(executorOpts, resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
				Rate:        cfg.RateLimit,
				Burst:       cfg.RateBurst,
				WaitOnLimit: true,
			})))
		}
		t.executors[ep] = resilience.NewExecutor(executorOpts...)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send implements dispatch.Transport. Per-endpoint rate limiting and
// concurrency limiting are composed via resilience.Executor rather than
// invoked directly, so the teacher's documented wrap order (rate limiter
// outermost, bulkhead inside it) is honored instead of re-decided here.
func (t *HTTPTransport) Send(ctx context.Context, endpoint dispatch.Endpoint, payload any) (dispatch.Outcome, error) {
	cfg, ok := t.endpoints[endpoint]
	if !ok {
		return 0, fmt.Errorf("httptransport: unknown endpoint %v", endpoint)
	}

	var outcome dispatch.Outcome
	err := t.executors[endpoint].Execute(ctx, func(ctx context.Context) error {
		o, sendErr := t.cachedSend(ctx, endpoint, cfg, payload)
		outcome = o
		return sendErr
	})
	if err != nil {
		return dispatch.OutcomeTransportError, err
	}
	return outcome, nil
}

func (t *HTTPTransport) send(ctx context.Context, cfg EndpointConfig, payload any) (dispatch.Outcome, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return dispatch.OutcomeTransportError, fmt.Errorf("httptransport: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return dispatch.OutcomeTransportError, fmt.Errorf("httptransport: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if cfg.BearerToken != "" {
		token := cfg.BearerToken
		if t.resolver != nil {
			token, err = t.resolver.ResolveValue(ctx, token)
			if err != nil {
				return dispatch.OutcomeTransportError, fmt.Errorf("httptransport: resolve bearer token: %w", err)
			}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return dispatch.OutcomeTransportError, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	return dispatch.Outcome(resp.StatusCode), nil
}
