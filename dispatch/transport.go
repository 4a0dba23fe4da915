package dispatch

import "context"

// Endpoint identifies a remote target. Equality is by identity: callers
// should supply comparable values (strings, ints, or pointers) so the
// Dispatcher can key per-endpoint health state and detect distinct
// endpoints during hedging and round-robin. Endpoint is opaque to the
// dispatcher core; a reference Transport (see package httptransport) binds
// each Endpoint to whatever it needs (a base URL, a connection) via its
// own side table.
type Endpoint any

// Transport is the pluggable collaborator that actually sends a payload to
// one endpoint and yields an Outcome. Implementations must:
//
//   - Honor ctx cancellation: when ctx is done, abandon in-flight work
//     promptly. The dispatcher relies on this to bound attempt duration.
//   - Be safe for concurrent use across distinct (endpoint, payload) pairs;
//     hedging and concurrent Request calls both invoke Send concurrently.
//   - Translate protocol-level failures (non-2xx status, refused
//     connections, timeouts) into a non-Success Outcome rather than a Go
//     error. A non-nil error returned from Send is treated by the
//     dispatcher as an undifferentiated transport failure and classified
//     as OutcomeTransportError; it is not retried differently than any
//     other failing Outcome would be. Transport-raised programming errors
//     (panics) propagate unchanged and are not this interface's concern.
type Transport interface {
	Send(ctx context.Context, endpoint Endpoint, payload any) (Outcome, error)
}

// TransportFunc adapts a plain function to the Transport interface.
type TransportFunc func(ctx context.Context, endpoint Endpoint, payload any) (Outcome, error)

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, endpoint Endpoint, payload any) (Outcome, error) {
	return f(ctx, endpoint, payload)
}
