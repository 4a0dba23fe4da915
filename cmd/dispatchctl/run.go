package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/resilientdispatch/config"
	"github.com/jonwraymond/resilientdispatch/dispatch"
	"github.com/jonwraymond/resilientdispatch/httptransport"
	"github.com/jonwraymond/resilientdispatch/observe"
)

func newRunCmd(configPath *string) *cobra.Command {
	var (
		payloadJSON string
		serviceName string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Issue one request through the configured dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if len(f.Endpoints) == 0 {
				return fmt.Errorf("dispatchctl: no endpoints configured")
			}

			policy, err := f.Policy.ToPolicy()
			if err != nil {
				return err
			}

			resolver, err := config.BuildResolver()
			if err != nil {
				return err
			}

			endpoints := make([]dispatch.Endpoint, 0, len(f.Endpoints))
			httpEndpoints := make(map[dispatch.Endpoint]httptransport.EndpointConfig, len(f.Endpoints))
			for _, e := range f.Endpoints {
				ep := dispatch.Endpoint(e.Name)
				endpoints = append(endpoints, ep)
				httpEndpoints[ep] = httptransport.EndpointConfig{
					URL:           e.URL,
					BearerToken:   e.BearerToken,
					MaxConcurrent: e.MaxConcurrent,
				}
			}
			transport := httptransport.New(httpEndpoints, resolver, nil)

			var opts []dispatch.Option
			if mw, err := buildMiddleware(cmd.Context(), serviceName); err == nil && mw != nil {
				opts = append(opts, dispatch.WithObservability(mw))
			}

			d, err := dispatch.New(policy, endpoints, transport, opts...)
			if err != nil {
				return err
			}

			var payload any
			if payloadJSON != "" {
				if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
					return fmt.Errorf("dispatchctl: parse --payload: %w", err)
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), policy.LatencyBudget+5*time.Second)
			defer cancel()

			outcome, err := d.Request(ctx, payload)
			result := map[string]any{"outcome": int(outcome)}
			var exhausted *dispatch.DispatchExhausted
			if err != nil {
				result["error"] = err.Error()
				if e, ok := err.(*dispatch.DispatchExhausted); ok {
					exhausted = e
					result["reason"] = exhausted.Reason.String()
					result["attempts_used"] = exhausted.AttemptsUsed
					result["elapsed"] = exhausted.Elapsed.String()
				}
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(result); encErr != nil {
				return encErr
			}
			if err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&payloadJSON, "payload", "", "JSON payload to dispatch")
	cmd.Flags().StringVar(&serviceName, "service-name", "dispatchctl", "service name reported in traces/metrics")
	return cmd
}

// buildMiddleware constructs observability middleware using stdout
// exporters, so `dispatchctl run` is observable without requiring an
// OTLP collector to be running. A failure here is non-fatal: the
// dispatcher still runs without observability.
func buildMiddleware(ctx context.Context, serviceName string) (*observe.Middleware, error) {
	obs, err := observe.NewObserver(ctx, observe.Config{
		ServiceName: serviceName,
		Version:     "dev",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1.0},
		Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "stdout"},
		Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
	})
	if err != nil {
		return nil, err
	}
	return observe.MiddlewareFromObserver(obs)
}
