package dispatch

import (
	"fmt"
	"math"
	"time"
)

// Extra is the closed set of resilience strategies a Policy may carry: one
// of nil (none), Backoff, Hedge, or CircuitBreaker. It is a marker
// interface rather than an enum so each variant carries its own
// parameters.
type Extra interface {
	extra()
}

// Backoff delays retries with exponential growth: the wait before the
// n-th retry (n>=1) is InitialDelay * Factor^(n-1).
type Backoff struct {
	InitialDelay time.Duration
	Factor       float64
}

func (Backoff) extra() {}

// delay returns the wait before the n-th retry (n is 1-based: the wait
// before the second attempt overall is delay(1)).
func (b Backoff) delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	return time.Duration(float64(b.InitialDelay) * math.Pow(b.Factor, float64(n-1)))
}

// Hedge fans out to every other endpoint if the primary attempt has not
// completed within HedgingDelay.
type Hedge struct {
	HedgingDelay time.Duration
}

func (Hedge) extra() {}

// CircuitBreaker enables per-endpoint sliding-window failure tracking and
// health-ranked endpoint selection.
type CircuitBreaker struct {
	WindowSize       int
	FailureThreshold float64
	RecoveryTimeout  time.Duration
}

func (CircuitBreaker) extra() {}

// Policy is an immutable description of the resilience contract for one
// Dispatcher. Construct it once and reuse it across any number of
// Dispatcher instances and Request calls.
type Policy struct {
	// MaxAttempts is the total number of attempts allowed, including the
	// first. Must be >= 1.
	MaxAttempts int

	// LatencyBudget is the total wall time available for one Request
	// call. Must be >= 0.
	LatencyBudget time.Duration

	// FastErrors is the set of Outcome codes classified as non-retryable.
	// Any attempt yielding one of these immediately ends the Request with
	// ReasonNonRetryable.
	FastErrors []Outcome

	// Extra selects exactly one resilience strategy: nil (none), Backoff,
	// Hedge, or CircuitBreaker.
	Extra Extra
}

// IsFastError reports whether o is in Policy.FastErrors.
func (p Policy) IsFastError(o Outcome) bool {
	for _, fe := range p.FastErrors {
		if fe == o {
			return true
		}
	}
	return false
}

// Validate checks the bounds in spec §4.2. It is called once by New;
// callers constructing a Policy directly may call it themselves to fail
// fast.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("dispatch: policy.MaxAttempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.LatencyBudget < 0 {
		return fmt.Errorf("dispatch: policy.LatencyBudget must be >= 0, got %s", p.LatencyBudget)
	}
	switch e := p.Extra.(type) {
	case Backoff:
		if e.InitialDelay < 0 {
			return fmt.Errorf("dispatch: backoff.InitialDelay must be >= 0, got %s", e.InitialDelay)
		}
		if e.Factor < 0 {
			return fmt.Errorf("dispatch: backoff.Factor must be >= 0, got %f", e.Factor)
		}
	case Hedge:
		if e.HedgingDelay < 0 {
			return fmt.Errorf("dispatch: hedge.HedgingDelay must be >= 0, got %s", e.HedgingDelay)
		}
	case CircuitBreaker:
		if e.WindowSize < 1 {
			return fmt.Errorf("dispatch: circuitbreaker.WindowSize must be >= 1, got %d", e.WindowSize)
		}
		if e.FailureThreshold < 0 || e.FailureThreshold > 1 {
			return fmt.Errorf("dispatch: circuitbreaker.FailureThreshold must be in [0,1], got %f", e.FailureThreshold)
		}
		if e.RecoveryTimeout < 0 {
			return fmt.Errorf("dispatch: circuitbreaker.RecoveryTimeout must be >= 0, got %s", e.RecoveryTimeout)
		}
	case nil:
		// none
	default:
		return fmt.Errorf("dispatch: unrecognized policy.Extra %T", e)
	}
	return nil
}

// variant returns the short name used in logs, traces, and metrics.
func (p Policy) variant() string {
	switch p.Extra.(type) {
	case Backoff:
		return "backoff"
	case Hedge:
		return "hedge"
	case CircuitBreaker:
		return "circuit_breaker"
	default:
		return "none"
	}
}
