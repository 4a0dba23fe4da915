package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/resilientdispatch/resilience"
)

// attemptRunner performs one attempt against one endpoint, applying a
// per-attempt timeout derived from the request's remaining latency
// budget. The timeout itself is delegated to resilience.Timeout: the same
// "wrap an operation, map a deadline to a sentinel error" primitive the
// teacher already ships, rather than a second hand-rolled implementation.
type attemptRunner struct {
	transport Transport
}

// run sends payload to endpoint and waits up to remaining. remaining must
// be > 0; the Dispatcher's main loop checks this before calling run, per
// spec §4.5's precondition.
func (r *attemptRunner) run(ctx context.Context, endpoint Endpoint, payload any, remaining time.Duration) (Outcome, error) {
	var outcome Outcome

	timeout := resilience.NewTimeout(resilience.TimeoutConfig{Timeout: remaining})
	err := timeout.Execute(ctx, func(ctx context.Context) error {
		o, sendErr := r.transport.Send(ctx, endpoint, payload)
		if sendErr != nil {
			outcome = OutcomeTransportError
			return nil
		}
		outcome = o
		return nil
	})
	if err != nil {
		if errors.Is(err, resilience.ErrTimeout) {
			return 0, ErrLatencyBudgetExhausted
		}
		// ctx was canceled by the caller of Request, not by the budget.
		return 0, err
	}
	return outcome, nil
}
