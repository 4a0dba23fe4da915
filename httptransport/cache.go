package httptransport

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jonwraymond/resilientdispatch/cache"
	"github.com/jonwraymond/resilientdispatch/dispatch"
)

// WithCache enables response caching for idempotent sends. Each endpoint's
// response is cached under a key derived from the endpoint and the
// payload, via the same cache.CacheMiddleware/Keyer/Policy stack the
// teacher uses for tool execution results. Because a dispatch endpoint
// carries no "tags", cached sends are distinguished only by the policy's
// TTL, not by cache.DefaultSkipRule's unsafe-tag check; callers that
// dispatch non-idempotent payloads should not enable this option.
func WithCache(c cache.Cache, keyer cache.Keyer, policy cache.Policy) Option {
	return func(t *HTTPTransport) {
		if keyer == nil {
			keyer = cache.NewDefaultKeyer()
		}
		t.cache = cache.NewCacheMiddleware(c, keyer, policy, func(string, []string) bool { return false })
	}
}

// cachedSend runs send through the cache middleware when one is
// configured, encoding the resulting Outcome as its decimal status code
// so MemoryCache's []byte value can hold it.
func (t *HTTPTransport) cachedSend(ctx context.Context, endpoint dispatch.Endpoint, cfg EndpointConfig, payload any) (dispatch.Outcome, error) {
	if t.cache == nil {
		return t.send(ctx, cfg, payload)
	}

	raw, err := t.cache.Execute(ctx, fmt.Sprint(endpoint), payload, nil, func(ctx context.Context, _ string, input any) ([]byte, error) {
		outcome, sendErr := t.send(ctx, cfg, input)
		if sendErr != nil {
			return nil, sendErr
		}
		return []byte(strconv.Itoa(int(outcome))), nil
	})
	if err != nil {
		return dispatch.OutcomeTransportError, err
	}

	code, err := strconv.Atoi(string(raw))
	if err != nil {
		return dispatch.OutcomeTransportError, fmt.Errorf("httptransport: decode cached outcome: %w", err)
	}
	return dispatch.Outcome(code), nil
}
