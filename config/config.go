// Package config loads a dispatcher's Policy and endpoint/transport
// settings from a YAML file and the environment, per SPEC_FULL §4.9. It
// follows the same Viper pattern the rest of the example pack uses for
// configuration: a mapstructure-tagged struct, viper.SetDefault calls,
// an env prefix, and a final Unmarshal.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonwraymond/resilientdispatch/dispatch"
)

// EnvPrefix is the prefix Viper uses for environment variable overrides,
// e.g. DISPATCHCTL_POLICY_MAX_ATTEMPTS.
const EnvPrefix = "DISPATCHCTL"

// File is the on-disk/env representation of a dispatcher configuration.
type File struct {
	Policy    PolicyConfig     `mapstructure:"policy"`
	Endpoints []EndpointConfig `mapstructure:"endpoints"`
	Auth      AuthConfig       `mapstructure:"auth"`
}

// AuthConfig describes how cmd/dispatchctl's serve-health HTTP surface
// authenticates and authorizes inbound requests. Authenticator/Authorizer
// name one of auth.DefaultRegistry's registered factories ("api_key",
// "jwt", "oauth2_introspection" / "simple_rbac", "allow_all", "deny_all");
// empty means no authentication or no authorization is enforced.
// AuthenticatorConfig and AuthorizerConfig are passed through verbatim as
// the factory's cfg map, per each factory's own option keys.
type AuthConfig struct {
	Authenticator       string         `mapstructure:"authenticator"`
	AuthenticatorConfig map[string]any `mapstructure:"authenticator_config"`
	Authorizer          string         `mapstructure:"authorizer"`
	AuthorizerConfig    map[string]any `mapstructure:"authorizer_config"`
}

// PolicyConfig mirrors dispatch.Policy in a form Viper can decode from
// YAML or environment variables; ToPolicy converts it, selecting Extra by
// Variant.
type PolicyConfig struct {
	MaxAttempts   int      `mapstructure:"max_attempts"`
	LatencyBudget string   `mapstructure:"latency_budget"`
	FastErrors    []int    `mapstructure:"fast_errors"`
	Variant       string   `mapstructure:"variant"` // "none" | "backoff" | "hedge" | "circuit_breaker"
	Backoff       Backoff  `mapstructure:"backoff"`
	Hedge         Hedge    `mapstructure:"hedge"`
	CircuitBreaker CircuitBreaker `mapstructure:"circuit_breaker"`
}

// Backoff mirrors dispatch.Backoff with string durations.
type Backoff struct {
	InitialDelay string  `mapstructure:"initial_delay"`
	Factor       float64 `mapstructure:"factor"`
}

// Hedge mirrors dispatch.Hedge with a string duration.
type Hedge struct {
	HedgingDelay string `mapstructure:"hedging_delay"`
}

// CircuitBreaker mirrors dispatch.CircuitBreaker with a string duration.
type CircuitBreaker struct {
	WindowSize       int     `mapstructure:"window_size"`
	FailureThreshold float64 `mapstructure:"failure_threshold"`
	RecoveryTimeout  string  `mapstructure:"recovery_timeout"`
}

// EndpointConfig is one endpoint's HTTP binding, decoded into
// httptransport.EndpointConfig by the caller (config does not import
// httptransport to avoid a dependency cycle with dispatchctl's wiring).
type EndpointConfig struct {
	Name          string `mapstructure:"name"`
	URL           string `mapstructure:"url"`
	BearerToken   string `mapstructure:"bearer_token"`
	MaxConcurrent int    `mapstructure:"max_concurrent"`
}

// Load reads configuration from path if it is non-empty, otherwise from
// "dispatchctl.yaml" in the current directory, layering in DISPATCHCTL_*
// environment overrides.
func Load(path string) (*File, error) {
	v := viper.New()

	v.SetDefault("policy.max_attempts", 3)
	v.SetDefault("policy.latency_budget", "5s")
	v.SetDefault("policy.variant", "none")
	v.SetDefault("policy.backoff.initial_delay", "100ms")
	v.SetDefault("policy.backoff.factor", 2.0)
	v.SetDefault("policy.hedge.hedging_delay", "100ms")
	v.SetDefault("policy.circuit_breaker.window_size", 10)
	v.SetDefault("policy.circuit_breaker.failure_threshold", 0.5)
	v.SetDefault("policy.circuit_breaker.recovery_timeout", "30s")

	v.SetConfigName("dispatchctl")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if path != "" {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("config: decode config: %w", err)
	}
	return &f, nil
}

// ToPolicy converts PolicyConfig into a validated dispatch.Policy.
func (c PolicyConfig) ToPolicy() (dispatch.Policy, error) {
	budget, err := time.ParseDuration(c.LatencyBudget)
	if err != nil {
		return dispatch.Policy{}, fmt.Errorf("config: parse latency_budget: %w", err)
	}

	fastErrors := make([]dispatch.Outcome, len(c.FastErrors))
	for i, code := range c.FastErrors {
		fastErrors[i] = dispatch.Outcome(code)
	}

	policy := dispatch.Policy{
		MaxAttempts:   c.MaxAttempts,
		LatencyBudget: budget,
		FastErrors:    fastErrors,
	}

	switch strings.ToLower(c.Variant) {
	case "", "none":
		// policy.Extra stays nil
	case "backoff":
		initialDelay, err := time.ParseDuration(c.Backoff.InitialDelay)
		if err != nil {
			return dispatch.Policy{}, fmt.Errorf("config: parse backoff.initial_delay: %w", err)
		}
		policy.Extra = dispatch.Backoff{InitialDelay: initialDelay, Factor: c.Backoff.Factor}
	case "hedge":
		hedgingDelay, err := time.ParseDuration(c.Hedge.HedgingDelay)
		if err != nil {
			return dispatch.Policy{}, fmt.Errorf("config: parse hedge.hedging_delay: %w", err)
		}
		policy.Extra = dispatch.Hedge{HedgingDelay: hedgingDelay}
	case "circuit_breaker":
		recoveryTimeout, err := time.ParseDuration(c.CircuitBreaker.RecoveryTimeout)
		if err != nil {
			return dispatch.Policy{}, fmt.Errorf("config: parse circuit_breaker.recovery_timeout: %w", err)
		}
		policy.Extra = dispatch.CircuitBreaker{
			WindowSize:       c.CircuitBreaker.WindowSize,
			FailureThreshold: c.CircuitBreaker.FailureThreshold,
			RecoveryTimeout:  recoveryTimeout,
		}
	default:
		return dispatch.Policy{}, fmt.Errorf("config: unknown policy variant %q", c.Variant)
	}

	if err := policy.Validate(); err != nil {
		return dispatch.Policy{}, err
	}
	return policy, nil
}
