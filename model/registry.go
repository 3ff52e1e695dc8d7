package model

import (
	"fmt"
	"strings"
)

// Registry routes capabilities to endpoint chains. The capability and
// endpoint tables are fixed at construction, since configuration is
// read-only once the process is up; only circuit-breaker state mutates,
// under its own lock.
type Registry struct {
	capabilities map[Capability]*CapabilityConfig
	endpoints    map[string]*EndpointConfig
	defaultModel string
	breakers     *breakers
}

// CapabilityConfig lists which endpoints serve a capability and the
// order they are tried in.
type CapabilityConfig struct {
	Description string   `json:"description" yaml:"description"`
	Preferred   []string `json:"preferred" yaml:"preferred"`
	Fallback    []string `json:"fallback" yaml:"fallback"`
}

// EndpointConfig names a concrete model behind a provider dialect.
type EndpointConfig struct {
	// Provider selects the wire dialect (ollama, openai, anthropic).
	Provider string `json:"provider" yaml:"provider"`

	// URL overrides the provider's default base URL.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Model is the identifier sent on the wire.
	Model string `json:"model" yaml:"model"`

	// MaxTokens records the context window for operators reading the
	// configuration; requests carry their own limit.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// NewRegistry builds a registry from explicit tables. The default model
// for unknown capabilities is "default"; load from a file to configure
// it.
func NewRegistry(caps map[Capability]*CapabilityConfig, endpoints map[string]*EndpointConfig) *Registry {
	return &Registry{
		capabilities: caps,
		endpoints:    endpoints,
		defaultModel: "default",
		breakers:     newBreakers(DefaultBreakerConfig()),
	}
}

// NewDefaultRegistry covers all three capabilities with hosted models
// preferred and local ollama models as fallbacks. Used when no registry
// file is configured.
func NewDefaultRegistry() *Registry {
	return &Registry{
		capabilities: map[Capability]*CapabilityConfig{
			CapabilityCategorize: {
				Description: "Assign time entries to categories",
				Preferred:   []string{"gpt-4o-mini"},
				Fallback:    []string{"qwen", "llama3.2"},
			},
			CapabilityPlan: {
				Description: "Produce workflow step chains from a prompt",
				Preferred:   []string{"gpt-4o"},
				Fallback:    []string{"claude-haiku", "qwen"},
			},
			CapabilitySummarize: {
				Description: "Narrative summaries of analysis results",
				Preferred:   []string{"gpt-4o-mini"},
				Fallback:    []string{"qwen"},
			},
		},
		endpoints: map[string]*EndpointConfig{
			"gpt-4o": {
				Provider:  "openai",
				URL:       "https://api.openai.com/v1",
				Model:     "gpt-4o",
				MaxTokens: 128000,
			},
			"gpt-4o-mini": {
				Provider:  "openai",
				URL:       "https://api.openai.com/v1",
				Model:     "gpt-4o-mini",
				MaxTokens: 128000,
			},
			"claude-haiku": {
				Provider:  "anthropic",
				Model:     "claude-haiku-3-5-20241022",
				MaxTokens: 200000,
			},
			"qwen": {
				Provider:  "ollama",
				URL:       "http://localhost:11434/v1",
				Model:     "qwen2.5:14b",
				MaxTokens: 128000,
			},
			"llama3.2": {
				Provider:  "ollama",
				URL:       "http://localhost:11434/v1",
				Model:     "llama3.2",
				MaxTokens: 128000,
			},
		},
		defaultModel: "gpt-4o-mini",
		breakers:     newBreakers(DefaultBreakerConfig()),
	}
}

// Resolve returns the first-choice endpoint for a capability, or the
// default model when the capability has no configuration.
func (r *Registry) Resolve(capability Capability) string {
	if cfg, ok := r.capabilities[capability]; ok && len(cfg.Preferred) > 0 {
		return cfg.Preferred[0]
	}
	return r.defaultModel
}

// GetFallbackChain returns every endpoint serving a capability,
// preferred first, fallbacks after. Unconfigured capabilities route to
// the default model.
func (r *Registry) GetFallbackChain(capability Capability) []string {
	cfg, ok := r.capabilities[capability]
	if !ok {
		return []string{r.defaultModel}
	}
	chain := make([]string, 0, len(cfg.Preferred)+len(cfg.Fallback))
	chain = append(chain, cfg.Preferred...)
	return append(chain, cfg.Fallback...)
}

// GetEndpoint returns the configuration for name, nil when absent.
func (r *Registry) GetEndpoint(name string) *EndpointConfig {
	return r.endpoints[name]
}

// ListCapabilities returns the configured capability names.
func (r *Registry) ListCapabilities() []Capability {
	caps := make([]Capability, 0, len(r.capabilities))
	for c := range r.capabilities {
		caps = append(caps, c)
	}
	return caps
}

// ListEndpoints returns the configured endpoint names.
func (r *Registry) ListEndpoints() []string {
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	return names
}

// Validate checks that every endpoint a capability or the default
// refers to actually exists, so a typo in the registry file fails at
// startup instead of mid-request.
func (r *Registry) Validate() error {
	var problems []string

	for capability, cfg := range r.capabilities {
		for _, name := range cfg.Preferred {
			if _, ok := r.endpoints[name]; !ok {
				problems = append(problems, fmt.Sprintf("capability %q prefers unknown endpoint %q", capability, name))
			}
		}
		for _, name := range cfg.Fallback {
			if _, ok := r.endpoints[name]; !ok {
				problems = append(problems, fmt.Sprintf("capability %q falls back to unknown endpoint %q", capability, name))
			}
		}
	}
	if r.defaultModel != "" && r.defaultModel != "default" {
		if _, ok := r.endpoints[r.defaultModel]; !ok {
			problems = append(problems, fmt.Sprintf("default model %q has no endpoint", r.defaultModel))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid model registry: %s", strings.Join(problems, "; "))
	}
	return nil
}
