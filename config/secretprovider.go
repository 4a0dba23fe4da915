package config

import (
	"context"
	"fmt"
	"os"

	"github.com/jonwraymond/resilientdispatch/secret"
)

// EnvProvider resolves secretref:env:KEY references against the process
// environment. The teacher's secret package defines the Provider
// interface but ships no concrete implementation; this is the minimal
// one a CLI needs.
type EnvProvider struct{}

// NewEnvProvider constructs an EnvProvider.
func NewEnvProvider() *EnvProvider { return &EnvProvider{} }

// Name implements secret.Provider.
func (p *EnvProvider) Name() string { return "env" }

// Resolve implements secret.Provider, looking ref up as an environment
// variable name.
func (p *EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	value, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("config: environment variable %q is not set", ref)
	}
	return value, nil
}

// Close implements secret.Provider. EnvProvider holds no resources.
func (p *EnvProvider) Close() error { return nil }

// BuildResolver constructs the secret.Resolver dispatchctl uses to expand
// bearer tokens. It goes through a secret.Registry rather than calling
// NewEnvProvider directly so that a future provider (vault, SSM, ...) only
// needs a Register call here, not a change at every call site.
func BuildResolver() (*secret.Resolver, error) {
	registry := secret.NewRegistry()
	if err := registry.Register("env", func(map[string]any) (secret.Provider, error) {
		return NewEnvProvider(), nil
	}); err != nil {
		return nil, fmt.Errorf("config: register env secret provider: %w", err)
	}

	provider, err := registry.Create("env", nil)
	if err != nil {
		return nil, fmt.Errorf("config: create env secret provider: %w", err)
	}
	return secret.NewResolver(false, provider), nil
}
