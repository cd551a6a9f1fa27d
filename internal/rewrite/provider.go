// Package rewrite turns article text into short rewritten blurbs by calling an
// ordered fallback chain of LLM providers and post-processing the result.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Provider kinds.
const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
)

// ErrEmptyContent marks a response that carried no usable text.
var ErrEmptyContent = errors.New("empty completion content")

// Request is one completion request.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Attempt is the outcome of a single provider call: either Content or Err.
type Attempt struct {
	Provider string
	Content  string
	Err      error
}

// OK reports whether the attempt produced usable content.
func (a Attempt) OK() bool {
	return a.Err == nil && strings.TrimSpace(a.Content) != ""
}

// Provider is one configured LLM backend.
type Provider interface {
	ID() string
	// Available reports whether the provider has a credential. Unavailable
	// providers are skipped without counting as a failure.
	Available() bool
	Complete(ctx context.Context, req Request) Attempt
}

// ProviderConfig is one entry of the ordered provider list.
type ProviderConfig struct {
	ID      string `mapstructure:"id"`
	Kind    string `mapstructure:"kind"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	// APIKeyEnv names an environment variable read when APIKey is empty.
	APIKeyEnv string `mapstructure:"api_key_env"`
	Model     string `mapstructure:"model"`
}

// Credential returns APIKey, falling back to the APIKeyEnv variable.
func (c ProviderConfig) Credential() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv != "" {
		return strings.TrimSpace(os.Getenv(c.APIKeyEnv))
	}
	return ""
}

// BuildProviders constructs providers in configured order.
func BuildProviders(cfgs []ProviderConfig, httpClient *http.Client) ([]Provider, error) {
	providers := make([]Provider, 0, len(cfgs))
	for _, cfg := range cfgs {
		cfg.APIKey = cfg.Credential()
		switch strings.ToLower(cfg.Kind) {
		case KindOpenAI, "":
			providers = append(providers, NewOpenAI(cfg, httpClient))
		case KindAnthropic:
			providers = append(providers, NewAnthropic(cfg, httpClient))
		default:
			return nil, fmt.Errorf("provider %s: unknown kind %q", cfg.ID, cfg.Kind)
		}
	}
	return providers, nil
}
