package dispatch

import (
	"sync"
	"time"
)

// EndpointHealth tracks one endpoint's sliding-window failure rate and
// open/closed circuit state. It is shared across concurrent Request calls
// on the same Dispatcher, so every method is mutex-protected.
//
// Modeled on resilience.CircuitBreaker's mutex-guarded state, but the
// state machine itself is a sliding window rather than a consecutive
// failure counter, per spec §3/§4.3.
type EndpointHealth struct {
	mu sync.Mutex

	windowSize       int
	failureThreshold float64
	recoveryTimeout  time.Duration

	history   []bool // FIFO, oldest at index 0, length <= windowSize
	failures  int    // count of false entries in history, kept in sync with it
	openUntil time.Time
}

func newEndpointHealth(cb CircuitBreaker) *EndpointHealth {
	return &EndpointHealth{
		windowSize:       cb.WindowSize,
		failureThreshold: cb.FailureThreshold,
		recoveryTimeout:  cb.RecoveryTimeout,
		history:          make([]bool, 0, cb.WindowSize),
	}
}

// Record appends one outcome to the sliding window, evicting the oldest
// entry once the window is full. If the new entry is a failure and the
// post-append failure rate is >= FailureThreshold, the circuit opens for
// RecoveryTimeout. A success never moves openUntil backward.
func (h *EndpointHealth) Record(success bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.history) == h.windowSize {
		if !h.history[0] {
			h.failures--
		}
		copy(h.history, h.history[1:])
		h.history = h.history[:len(h.history)-1]
	}
	h.history = append(h.history, success)
	if !success {
		h.failures++
	}

	if !success && h.failureRateLocked() >= h.failureThreshold {
		openUntil := time.Now().Add(h.recoveryTimeout)
		if openUntil.After(h.openUntil) {
			h.openUntil = openUntil
		}
	}
}

// IsOpen reports whether the circuit is currently open.
func (h *EndpointHealth) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return time.Now().Before(h.openUntil)
}

// FailureRate returns the fraction of failures in the current window, 0 if
// the window is empty.
func (h *EndpointHealth) FailureRate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failureRateLocked()
}

func (h *EndpointHealth) failureRateLocked() float64 {
	if len(h.history) == 0 {
		return 0
	}
	return float64(h.failures) / float64(len(h.history))
}

// TimeUntilRecovery returns max(0, openUntil - now).
func (h *EndpointHealth) TimeUntilRecovery() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	d := time.Until(h.openUntil)
	if d < 0 {
		return 0
	}
	return d
}
