package provider

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/avilov/tutorlab/internal/domain"
)

// ErrNoProviderConfigured signals that no credential source exists
// anywhere. Callers must surface this as a fatal condition rather than
// silently degrading.
var ErrNoProviderConfigured = errors.New("no LLM provider configured")

// Environment fallback variables, consulted only when no active
// persisted config exists.
const (
	envOpenAIKey    = "OPENAI_API_KEY"
	envAnthropicKey = "ANTHROPIC_API_KEY"
)

// defaultModels are the hard-coded per-provider defaults substituted
// when a selected config lacks an explicit model.
var defaultModels = map[string]string{
	ServiceOpenAI:    "gpt-4o-mini",
	ServiceAnthropic: "claude-3-5-sonnet-20241022",
}

// Selection is a resolved backend choice.
type Selection struct {
	ServiceName string
	APIKey      string
	Model       string
}

// ConfigSource exposes the persisted provider configuration table.
// store.Repository satisfies it.
type ConfigSource interface {
	ActiveProviderConfig(ctx context.Context, serviceName string) (*domain.ProviderConfig, error)
}

// Resolver determines which LLM backend, model and credential to use.
// Priority: active openai row, active anthropic row, OPENAI_API_KEY
// env, ANTHROPIC_API_KEY env. First match wins.
type Resolver struct {
	source ConfigSource
}

// NewResolver creates a resolver over the given config source.
func NewResolver(source ConfigSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the backend selection, or ErrNoProviderConfigured when
// no credential source exists anywhere.
func (r *Resolver) Resolve(ctx context.Context) (*Selection, error) {
	for _, svc := range []string{ServiceOpenAI, ServiceAnthropic} {
		cfg, err := r.source.ActiveProviderConfig(ctx, svc)
		if err != nil {
			return nil, fmt.Errorf("load provider config for %s: %w", svc, err)
		}
		if cfg != nil && cfg.APIKey != "" {
			return &Selection{
				ServiceName: svc,
				APIKey:      cfg.APIKey,
				Model:       modelOrDefault(svc, cfg.DefaultModel),
			}, nil
		}
	}

	if key := os.Getenv(envOpenAIKey); key != "" {
		return &Selection{ServiceName: ServiceOpenAI, APIKey: key, Model: defaultModels[ServiceOpenAI]}, nil
	}
	if key := os.Getenv(envAnthropicKey); key != "" {
		return &Selection{ServiceName: ServiceAnthropic, APIKey: key, Model: defaultModels[ServiceAnthropic]}, nil
	}

	return nil, ErrNoProviderConfigured
}

func modelOrDefault(serviceName, model string) string {
	if model != "" {
		return model
	}
	return defaultModels[serviceName]
}
