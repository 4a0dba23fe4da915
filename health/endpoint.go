package health

import "context"

// EndpointProbe reports one dispatch endpoint's circuit-breaker state:
// whether it is currently open and its recent failure rate. It exists so
// callers outside this package (dispatchctl) can adapt a
// dispatch.EndpointHealth without health importing dispatch.
type EndpointProbe func() (open bool, failureRate float64)

// EndpointChecker adapts an EndpointProbe into a Checker, reporting
// Unhealthy while the breaker is open and Degraded once its failure rate
// crosses 0 but it is still closed.
func EndpointChecker(name string, probe EndpointProbe) Checker {
	return NewCheckerFunc(name, func(_ context.Context) Result {
		open, rate := probe()
		if open {
			return Unhealthy("circuit breaker open", nil).WithDetails(map[string]any{"failure_rate": rate})
		}
		if rate > 0 {
			return Degraded("elevated failure rate").WithDetails(map[string]any{"failure_rate": rate})
		}
		return Healthy("closed").WithDetails(map[string]any{"failure_rate": rate})
	})
}
