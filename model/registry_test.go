package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()

	assert.Len(t, r.ListCapabilities(), 3)
	assert.GreaterOrEqual(t, len(r.ListEndpoints()), 3)
	assert.NoError(t, r.Validate(), "built-in registry must reference only endpoints it defines")
}

func TestRegistryResolve(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		capability Capability
		want       string
	}{
		{CapabilityCategorize, "gpt-4o-mini"},
		{CapabilityPlan, "gpt-4o"},
		{CapabilitySummarize, "gpt-4o-mini"},
		{Capability("unknown"), "gpt-4o-mini"},
	}
	for _, tt := range tests {
		t.Run(string(tt.capability), func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.capability))
		})
	}
}

func TestRegistryFallbackChain(t *testing.T) {
	r := NewDefaultRegistry()

	chain := r.GetFallbackChain(CapabilityCategorize)
	assert.Equal(t, []string{"gpt-4o-mini", "qwen", "llama3.2"}, chain, "preferred endpoints come before fallbacks")

	assert.Equal(t, []string{"gpt-4o-mini"}, r.GetFallbackChain(Capability("unknown")),
		"unconfigured capabilities route to the default model")
}

func TestRegistryGetEndpoint(t *testing.T) {
	r := NewDefaultRegistry()

	endpoint := r.GetEndpoint("qwen")
	require.NotNil(t, endpoint)
	assert.Equal(t, "ollama", endpoint.Provider)
	assert.NotEmpty(t, endpoint.Model)

	assert.Nil(t, r.GetEndpoint("nonexistent"))
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry(
		map[Capability]*CapabilityConfig{
			CapabilityCategorize: {
				Preferred: []string{"keyword-tuned"},
				Fallback:  []string{"general"},
			},
		},
		map[string]*EndpointConfig{
			"keyword-tuned": {Provider: "ollama", Model: "qwen2.5:14b"},
			"general":       {Provider: "openai", Model: "gpt-4o-mini"},
		},
	)

	assert.Equal(t, "keyword-tuned", r.Resolve(CapabilityCategorize))
	assert.Equal(t, "default", r.Resolve(Capability("unknown")),
		"explicit tables get the placeholder default until a file sets one")
	require.NotNil(t, r.GetEndpoint("general"))
}

func TestRegistryValidate(t *testing.T) {
	endpoints := map[string]*EndpointConfig{
		"real": {Provider: "ollama", Model: "llama3.2"},
	}

	tests := []struct {
		name     string
		registry *Registry
		wantErr  string
	}{
		{
			name: "all references resolve",
			registry: NewRegistry(map[Capability]*CapabilityConfig{
				CapabilityCategorize: {Preferred: []string{"real"}, Fallback: []string{"real"}},
			}, endpoints),
		},
		{
			name: "preferred endpoint missing",
			registry: NewRegistry(map[Capability]*CapabilityConfig{
				CapabilityCategorize: {Preferred: []string{"ghost"}},
			}, endpoints),
			wantErr: `prefers unknown endpoint "ghost"`,
		},
		{
			name: "fallback endpoint missing",
			registry: NewRegistry(map[Capability]*CapabilityConfig{
				CapabilityPlan: {Preferred: []string{"real"}, Fallback: []string{"ghost"}},
			}, endpoints),
			wantErr: `falls back to unknown endpoint "ghost"`,
		},
		{
			name: "default model missing",
			registry: func() *Registry {
				r := NewRegistry(nil, endpoints)
				r.defaultModel = "ghost"
				return r
			}(),
			wantErr: `default model "ghost" has no endpoint`,
		},
		{
			name: "every problem reported",
			registry: NewRegistry(map[Capability]*CapabilityConfig{
				CapabilityCategorize: {Preferred: []string{"ghost-a"}, Fallback: []string{"ghost-b"}},
			}, endpoints),
			wantErr: "ghost-a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.registry.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
