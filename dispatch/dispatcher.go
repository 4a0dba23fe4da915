package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/resilientdispatch/observe"
)

// Dispatcher orchestrates the retry loop described in spec §4.6: it
// consults an endpoint selector, runs attempts under the remaining
// latency budget, records per-endpoint health, and applies the policy's
// backoff/hedge/circuit-breaker strategy until it returns a Success or
// raises DispatchExhausted.
//
// A Dispatcher is constructed once and is safe for any number of
// concurrent Request calls: per spec §9, attempts_used, elapsed, and the
// round-robin cursor all live on the stack of one Request call. The only
// state shared across calls is the per-endpoint EndpointHealth map used
// by the CircuitBreaker variant, which is itself mutex-protected.
type Dispatcher struct {
	policy    Policy
	endpoints []Endpoint
	transport Transport
	runner    *attemptRunner

	// health is non-nil only when policy.Extra is CircuitBreaker.
	health map[Endpoint]*EndpointHealth

	middleware *observe.Middleware
}

// Option configures optional Dispatcher behavior.
type Option func(*Dispatcher)

// WithObservability attaches an observe.Middleware so every attempt is
// traced, metered, and logged. A nil middleware (the default) makes
// observability a complete no-op, per SPEC_FULL §4.10.
func WithObservability(mw *observe.Middleware) Option {
	return func(d *Dispatcher) {
		d.middleware = mw
	}
}

// New constructs a Dispatcher. endpoints must be non-empty; its order
// defines the round-robin sequence. transport must be non-nil.
func New(policy Policy, endpoints []Endpoint, transport Transport, opts ...Option) (*Dispatcher, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if len(endpoints) == 0 {
		return nil, errors.New("dispatch: endpoints must be non-empty")
	}
	if transport == nil {
		return nil, errors.New("dispatch: transport must be non-nil")
	}

	d := &Dispatcher{
		policy:    policy,
		endpoints: append([]Endpoint(nil), endpoints...),
		transport: transport,
		runner:    &attemptRunner{transport: transport},
	}

	if cb, ok := policy.Extra.(CircuitBreaker); ok {
		d.health = make(map[Endpoint]*EndpointHealth, len(endpoints))
		for _, e := range endpoints {
			d.health[e] = newEndpointHealth(cb)
		}
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// EndpointStatus reports whether endpoint's circuit breaker is currently
// open and its failure rate over the configured window. ok is false when
// the policy has no CircuitBreaker variant or endpoint is not one of the
// Dispatcher's configured endpoints; callers such as a health checker
// should treat that as "nothing to report" rather than an error.
func (d *Dispatcher) EndpointStatus(endpoint Endpoint) (open bool, failureRate float64, ok bool) {
	if d.health == nil {
		return false, 0, false
	}
	h, found := d.health[endpoint]
	if !found {
		return false, 0, false
	}
	return h.IsOpen(), h.FailureRate(), true
}

// Request issues payload against one or more equivalent endpoints and
// returns the first Success, subject to the Dispatcher's Policy. On
// anything other than Success it returns a *DispatchExhausted error (or,
// if the caller's ctx is canceled mid-attempt, ctx.Err()).
func (d *Dispatcher) Request(ctx context.Context, payload any) (Outcome, error) {
	sel := newSelector(d.endpoints)

	var (
		attemptsUsed int
		elapsed      time.Duration
		lastOutcome  Outcome
		lastEndpoint Endpoint
	)

	backoff, hasBackoff := d.policy.Extra.(Backoff)
	hedge, hasHedge := d.policy.Extra.(Hedge)
	_, hasCircuitBreaker := d.policy.Extra.(CircuitBreaker)

	for {
		// 1. Budget check.
		if attemptsUsed >= d.policy.MaxAttempts {
			return 0, d.exhausted(ReasonMaxAttemptsExceeded, attemptsUsed, elapsed, lastOutcome, lastEndpoint)
		}
		remaining := d.policy.LatencyBudget - elapsed
		if remaining <= 0 {
			return 0, d.exhausted(ReasonLatencyBudgetExhausted, attemptsUsed, elapsed, lastOutcome, lastEndpoint)
		}

		// 2. Pre-attempt backoff wait (attempts after the first only).
		if hasBackoff && attemptsUsed >= 1 {
			wait := backoff.delay(attemptsUsed)
			if wait > remaining {
				// Per spec §4.6 step 2, a backoff wait that would exceed
				// the remaining budget is itself cancelled rather than
				// run to completion against a truncated duration.
				return 0, d.exhausted(ReasonLatencyBudgetExhausted, attemptsUsed, d.policy.LatencyBudget, lastOutcome, lastEndpoint)
			}
			if err := sleepFor(ctx, wait); err != nil {
				return 0, err
			}
			elapsed += wait
			remaining = d.policy.LatencyBudget - elapsed
		}

		// 3. Select endpoint(s).
		var endpoint Endpoint
		if hasCircuitBreaker {
			endpoint = healthRanked(d.endpoints, d.health)
			if d.health[endpoint].IsOpen() {
				return 0, d.exhausted(ReasonCircuitBreakerOpen, attemptsUsed, elapsed, lastOutcome, endpoint)
			}
		} else {
			endpoint = sel.next()
		}
		lastEndpoint = endpoint

		// 4. Issue the attempt.
		attemptStart := time.Now()
		var (
			outcome Outcome
			err     error
		)
		if hasHedge {
			outcome, endpoint, err = d.runHedged(ctx, sel, endpoint, payload, hedge, remaining, attemptsUsed+1)
			lastEndpoint = endpoint
		} else {
			outcome, err = d.runObserved(ctx, endpoint, payload, attemptsUsed+1, remaining)
		}
		attemptElapsed := time.Since(attemptStart)

		if err != nil {
			if errors.Is(err, ErrLatencyBudgetExhausted) {
				elapsed += attemptElapsed
				return 0, d.exhausted(ReasonLatencyBudgetExhausted, attemptsUsed, elapsed, lastOutcome, endpoint)
			}
			// Caller-initiated cancellation (or a transport programming
			// error) propagates unchanged.
			return 0, err
		}
		lastOutcome = outcome

		// 5. Classify.
		if outcome.IsSuccess() {
			if d.health != nil {
				d.health[endpoint].Record(true)
			}
			return outcome, nil
		}
		if d.policy.IsFastError(outcome) {
			return 0, d.exhausted(ReasonNonRetryable, attemptsUsed+1, elapsed+attemptElapsed, outcome, endpoint)
		}

		if d.health != nil {
			d.health[endpoint].Record(false)
		}
		attemptsUsed++
		elapsed += attemptElapsed
	}
}

func (d *Dispatcher) exhausted(reason Reason, attempts int, elapsed time.Duration, outcome Outcome, endpoint Endpoint) error {
	return &DispatchExhausted{
		Reason:       reason,
		AttemptsUsed: attempts,
		Elapsed:      elapsed,
		LastOutcome:  outcome,
		LastEndpoint: endpoint,
	}
}

// runObserved runs one attempt through attemptRunner, wrapped in
// observability middleware when configured.
func (d *Dispatcher) runObserved(ctx context.Context, endpoint Endpoint, payload any, attemptNum int, remaining time.Duration) (Outcome, error) {
	if d.middleware == nil {
		return d.runner.run(ctx, endpoint, payload, remaining)
	}

	meta := observe.AttemptMeta{
		Endpoint: fmt.Sprint(endpoint),
		Variant:  d.policy.variant(),
		Attempt:  attemptNum,
	}
	fn := d.middleware.Wrap(func(ctx context.Context, _ observe.AttemptMeta, payload any) (any, error) {
		o, err := d.runner.run(ctx, endpoint, payload, remaining)
		return o, err
	})
	result, err := fn(ctx, meta, payload)
	if err != nil {
		return 0, err
	}
	return result.(Outcome), nil
}

// sleepFor blocks for d or until ctx is done, whichever comes first. A
// zero or negative d returns immediately (still observable for tests that
// assert a wait occurred at all, per spec §4.6 step 2's note on a zero
// initial_delay).
func sleepFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runHedged implements spec §4.6 step 4's Hedge variant: start the
// primary, wait hedgingDelay (bounded by remaining); if it hasn't
// completed, fan out to every other endpoint concurrently and return
// whichever of the whole set finishes first. Every other in-flight
// attempt is canceled once a winner is found, satisfying §5's "every
// attempt task ... must reach a terminal state before Request returns."
func (d *Dispatcher) runHedged(ctx context.Context, sel *selector, primary Endpoint, payload any, hedge Hedge, remaining time.Duration, attemptNum int) (Outcome, Endpoint, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()

	type attemptResult struct {
		outcome  Outcome
		endpoint Endpoint
		err      error
	}

	send := func(ctx context.Context, endpoint Endpoint) attemptResult {
		o, err := d.runObserved(ctx, endpoint, payload, attemptNum, remaining)
		return attemptResult{outcome: o, endpoint: endpoint, err: err}
	}

	primaryCh := make(chan attemptResult, 1)
	go func() { primaryCh <- send(attemptCtx, primary) }()

	hedgeDelay := hedge.HedgingDelay
	if hedgeDelay > remaining {
		hedgeDelay = remaining
	}
	timer := time.NewTimer(hedgeDelay)
	defer timer.Stop()

	select {
	case r := <-primaryCh:
		return r.outcome, r.endpoint, r.err
	case <-attemptCtx.Done():
		return 0, primary, ErrLatencyBudgetExhausted
	case <-timer.C:
		// Fall through to the fan-out below.
	}

	others := sel.others(primary)
	resultCh := make(chan attemptResult, len(others))
	g, gctx := errgroup.WithContext(attemptCtx)
	for _, ep := range others {
		ep := ep
		g.Go(func() error {
			resultCh <- send(gctx, ep)
			return nil
		})
	}

	select {
	case r := <-primaryCh:
		cancel()
		_ = g.Wait()
		return r.outcome, r.endpoint, r.err
	case r := <-resultCh:
		cancel()
		_ = g.Wait()
		return r.outcome, r.endpoint, r.err
	case <-attemptCtx.Done():
		_ = g.Wait()
		return 0, primary, ErrLatencyBudgetExhausted
	}
}
