package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/resilientdispatch/dispatch"
)

func TestRunProbeLoopIssuesRequestsUntilCancelled(t *testing.T) {
	var calls int32
	transport := dispatch.TransportFunc(func(_ context.Context, _ dispatch.Endpoint, _ any) (dispatch.Outcome, error) {
		atomic.AddInt32(&calls, 1)
		return dispatch.Success, nil
	})

	d, err := dispatch.New(dispatch.Policy{MaxAttempts: 1, LatencyBudget: time.Second}, []dispatch.Endpoint{"ep"}, transport)
	if err != nil {
		t.Fatalf("dispatch.New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	runProbeLoop(ctx, d, nil, 10*time.Millisecond)

	if atomic.LoadInt32(&calls) < 2 {
		t.Errorf("calls = %d, want at least 2 probes within the test window", calls)
	}
}
