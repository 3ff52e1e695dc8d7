package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RegistryConfig is the on-disk shape of a model registry file.
type RegistryConfig struct {
	Capabilities map[string]*CapabilityConfig `yaml:"capabilities"`
	Endpoints    map[string]*EndpointConfig   `yaml:"endpoints"`
	Defaults     *DefaultsConfig              `yaml:"defaults"`
}

// DefaultsConfig holds the model used when no capability matches.
type DefaultsConfig struct {
	Model string `yaml:"model" json:"model"`
}

// LoadFromFile reads a registry from a YAML file.
func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model registry %s: %w", path, err)
	}
	reg, err := LoadFromYAML(data)
	if err != nil {
		return nil, fmt.Errorf("parse model registry %s: %w", path, err)
	}
	return reg, nil
}

// LoadFromYAML parses registry YAML. The registry may sit under a
// model_registry key, so the same block can live inside a larger
// configuration file, or at the document root.
func LoadFromYAML(data []byte) (*Registry, error) {
	var wrapped struct {
		ModelRegistry *RegistryConfig `yaml:"model_registry"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err == nil && wrapped.ModelRegistry != nil {
		return registryFromConfig(wrapped.ModelRegistry)
	}

	var cfg RegistryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return registryFromConfig(&cfg)
}

func registryFromConfig(cfg *RegistryConfig) (*Registry, error) {
	reg := &Registry{
		capabilities: make(map[Capability]*CapabilityConfig, len(cfg.Capabilities)),
		endpoints:    make(map[string]*EndpointConfig, len(cfg.Endpoints)),
		defaultModel: "default",
		breakers:     newBreakers(DefaultBreakerConfig()),
	}

	for name, capCfg := range cfg.Capabilities {
		capability, err := ParseCapability(name)
		if err != nil {
			return nil, err
		}
		reg.capabilities[capability] = capCfg
	}
	for name, endpoint := range cfg.Endpoints {
		reg.endpoints[name] = endpoint
	}
	if cfg.Defaults != nil && cfg.Defaults.Model != "" {
		reg.defaultModel = cfg.Defaults.Model
	}

	return reg, nil
}
