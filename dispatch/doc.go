// Package dispatch implements a resilient request dispatcher: it issues a
// logical request against one or more equivalent endpoints and returns the
// first successful response, subject to a resilience Policy (retries,
// latency budget, non-retryable error codes, backoff, hedging, and
// per-endpoint circuit breaking).
//
// # Overview
//
// A [Dispatcher] is constructed once with a [Policy] and an ordered set of
// endpoints, then used for any number of concurrent [Dispatcher.Request]
// calls. The policy's "extra" strategy — none, [Backoff], [Hedge], or
// [CircuitBreaker] — determines how the retry loop selects endpoints,
// waits between attempts, and fans out.
//
// # Core Components
//
//   - [Policy]: immutable resilience contract for one Dispatcher
//   - [Outcome]: the status an attempt yields; [Success] is the only
//     passing value
//   - [Transport]: the pluggable collaborator that actually sends a payload
//   - [Dispatcher]: orchestrates the retry loop
//   - [DispatchExhausted]: the terminal error carrying one of four reasons
//
// # Quick Start
//
//	policy := dispatch.Policy{
//	    MaxAttempts:   4,
//	    LatencyBudget: 2 * time.Second,
//	    Extra:         dispatch.Backoff{InitialDelay: 100 * time.Millisecond, Factor: 2.0},
//	}
//
//	d, err := dispatch.New(policy, []dispatch.Endpoint{"primary", "secondary"}, transport)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	outcome, err := d.Request(ctx, payload)
//	var exhausted *dispatch.DispatchExhausted
//	if errors.As(err, &exhausted) {
//	    // exhausted.Reason tells you why
//	}
//
// # Thread Safety
//
// A Dispatcher is safe for concurrent [Dispatcher.Request] calls: all
// per-call mutable state (attempts used, elapsed time, round-robin cursor)
// lives on the stack of one Request call, not on the Dispatcher. The only
// state shared across calls is per-endpoint health tracking used by the
// CircuitBreaker variant, which is itself mutex-protected.
package dispatch
