// Package config provides configuration loading and management for Daylytics.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Daylytics configuration
type Config struct {
	App     AppConfig     `yaml:"app"`
	Server  ServerConfig  `yaml:"server"`
	Toggl   TogglConfig   `yaml:"toggl"`
	LLM     LLMConfig     `yaml:"llm"`
	Rules   RulesConfig   `yaml:"rules"`
	Metrics MetricsConfig `yaml:"metrics"`
	Events  EventsConfig  `yaml:"events"`
}

// AppConfig configures application-level settings
type AppConfig struct {
	// Name is the application name used in logs and the root banner
	Name string `yaml:"name"`
	// Debug enables debug logging
	Debug bool `yaml:"debug"`
	// DatabaseURL is reserved for a future persistence layer; nothing reads it yet
	DatabaseURL string `yaml:"database_url"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	// Host is the listen address (empty = all interfaces)
	Host string `yaml:"host"`
	// Port is the listen port
	Port int `yaml:"port"`
	// PathPrefix is prepended to all API routes (default: /api/v1)
	PathPrefix string `yaml:"path_prefix"`
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TogglConfig configures time-entry retrieval
type TogglConfig struct {
	// BaseURL is the Toggl Track API base URL
	BaseURL string `yaml:"base_url"`
	// Email and Password authenticate when APIToken is unset
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	// APIToken authenticates via token (preferred over email/password when set)
	APIToken string `yaml:"api_token"`
	// WorkspaceID scopes requests to a workspace (0 = default workspace)
	WorkspaceID int64 `yaml:"workspace_id"`
	// Timezone is the IANA zone used for day attribution (default: America/Los_Angeles)
	Timezone string `yaml:"timezone"`
	// Source selects where entries come from: "api" or "export"
	Source string `yaml:"source"`
	// ExportGlobs are glob patterns matching local CSV export files (source: export)
	ExportGlobs []string `yaml:"export_globs"`
	// Timeout is the maximum time to wait for API responses
	Timeout time.Duration `yaml:"timeout"`
}

// LLMConfig configures the model registry and LLM-backed behavior
type LLMConfig struct {
	// RegistryPath is the path to the model registry YAML file
	RegistryPath string `yaml:"registry_path"`
	// DisableRuleFallback stops the LLM categorizer from falling back to
	// keyword rules when the model is unavailable
	DisableRuleFallback bool `yaml:"disable_rule_fallback"`
	// DisableStaticFallback stops the LLM planner from falling back to the
	// built-in static plan when the model is unavailable
	DisableStaticFallback bool `yaml:"disable_static_fallback"`
}

// RulesConfig configures the categorization rules file
type RulesConfig struct {
	// Path is the path to the rules YAML file
	Path string `yaml:"path"`
	// Watch reloads the rules file on change
	Watch bool `yaml:"watch"`
}

// MetricsConfig configures the metrics sink
type MetricsConfig struct {
	// Backend selects the sink: "csv" or "pushgateway"
	Backend string `yaml:"backend"`
	// PushgatewayURL is the Prometheus Pushgateway base URL (backend: pushgateway)
	PushgatewayURL string `yaml:"pushgateway_url"`
	// Job is the Pushgateway job name
	Job string `yaml:"job"`
	// Namespace prefixes metric names
	Namespace string `yaml:"namespace"`
	// CSVPath is the output file path (backend: csv)
	CSVPath string `yaml:"csv_path"`
}

// EventsConfig configures the NATS event publisher
type EventsConfig struct {
	// URL is the NATS server URL (empty = publishing disabled)
	URL string `yaml:"url"`
	// SubjectPrefix prefixes published subjects
	SubjectPrefix string `yaml:"subject_prefix"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:  "daylytics",
			Debug: false,
		},
		Server: ServerConfig{
			Host:            "",
			Port:            8080,
			PathPrefix:      "/api/v1",
			ShutdownTimeout: 10 * time.Second,
		},
		Toggl: TogglConfig{
			BaseURL:  "https://api.track.toggl.com",
			Timezone: "America/Los_Angeles",
			Source:   "api",
			Timeout:  30 * time.Second,
		},
		LLM: LLMConfig{
			RegistryPath: "models.yaml",
		},
		Rules: RulesConfig{
			Path:  "rules.yaml",
			Watch: false,
		},
		Metrics: MetricsConfig{
			Backend:   "csv",
			Job:       "daylytics",
			Namespace: "daylytics",
			CSVPath:   "metrics.csv",
		},
		Events: EventsConfig{
			URL:           "",
			SubjectPrefix: "daylytics",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	switch c.Toggl.Source {
	case "api":
		if c.Toggl.BaseURL == "" {
			return fmt.Errorf("toggl.base_url is required")
		}
		if c.Toggl.APIToken == "" && (c.Toggl.Email == "" || c.Toggl.Password == "") {
			return fmt.Errorf("toggl.api_token or toggl.email and toggl.password are required")
		}
	case "export":
		if len(c.Toggl.ExportGlobs) == 0 {
			return fmt.Errorf("toggl.export_globs is required when toggl.source is export")
		}
	default:
		return fmt.Errorf("toggl.source must be api or export, got %q", c.Toggl.Source)
	}
	if _, err := time.LoadLocation(c.Toggl.Timezone); err != nil {
		return fmt.Errorf("toggl.timezone is invalid: %w", err)
	}
	switch c.Metrics.Backend {
	case "csv":
		if c.Metrics.CSVPath == "" {
			return fmt.Errorf("metrics.csv_path is required when metrics.backend is csv")
		}
	case "pushgateway":
		if c.Metrics.PushgatewayURL == "" {
			return fmt.Errorf("metrics.pushgateway_url is required when metrics.backend is pushgateway")
		}
	default:
		return fmt.Errorf("metrics.backend must be csv or pushgateway, got %q", c.Metrics.Backend)
	}
	if c.Rules.Path == "" {
		return fmt.Errorf("rules.path is required")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file. Environment variable
// references ($VAR or ${VAR}) in the file are expanded before parsing.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// App
	if other.App.Name != "" {
		c.App.Name = other.App.Name
	}
	if other.App.Debug {
		c.App.Debug = true
	}
	if other.App.DatabaseURL != "" {
		c.App.DatabaseURL = other.App.DatabaseURL
	}

	// Server
	if other.Server.Host != "" {
		c.Server.Host = other.Server.Host
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.PathPrefix != "" {
		c.Server.PathPrefix = other.Server.PathPrefix
	}
	if other.Server.ShutdownTimeout != 0 {
		c.Server.ShutdownTimeout = other.Server.ShutdownTimeout
	}

	// Toggl
	if other.Toggl.BaseURL != "" {
		c.Toggl.BaseURL = other.Toggl.BaseURL
	}
	if other.Toggl.Email != "" {
		c.Toggl.Email = other.Toggl.Email
	}
	if other.Toggl.Password != "" {
		c.Toggl.Password = other.Toggl.Password
	}
	if other.Toggl.APIToken != "" {
		c.Toggl.APIToken = other.Toggl.APIToken
	}
	if other.Toggl.WorkspaceID != 0 {
		c.Toggl.WorkspaceID = other.Toggl.WorkspaceID
	}
	if other.Toggl.Timezone != "" {
		c.Toggl.Timezone = other.Toggl.Timezone
	}
	if other.Toggl.Source != "" {
		c.Toggl.Source = other.Toggl.Source
	}
	if len(other.Toggl.ExportGlobs) > 0 {
		c.Toggl.ExportGlobs = other.Toggl.ExportGlobs
	}
	if other.Toggl.Timeout != 0 {
		c.Toggl.Timeout = other.Toggl.Timeout
	}

	// LLM
	if other.LLM.RegistryPath != "" {
		c.LLM.RegistryPath = other.LLM.RegistryPath
	}
	if other.LLM.DisableRuleFallback {
		c.LLM.DisableRuleFallback = true
	}
	if other.LLM.DisableStaticFallback {
		c.LLM.DisableStaticFallback = true
	}

	// Rules
	if other.Rules.Path != "" {
		c.Rules.Path = other.Rules.Path
	}
	if other.Rules.Watch {
		c.Rules.Watch = true
	}

	// Metrics
	if other.Metrics.Backend != "" {
		c.Metrics.Backend = other.Metrics.Backend
	}
	if other.Metrics.PushgatewayURL != "" {
		c.Metrics.PushgatewayURL = other.Metrics.PushgatewayURL
	}
	if other.Metrics.Job != "" {
		c.Metrics.Job = other.Metrics.Job
	}
	if other.Metrics.Namespace != "" {
		c.Metrics.Namespace = other.Metrics.Namespace
	}
	if other.Metrics.CSVPath != "" {
		c.Metrics.CSVPath = other.Metrics.CSVPath
	}

	// Events
	if other.Events.URL != "" {
		c.Events.URL = other.Events.URL
	}
	if other.Events.SubjectPrefix != "" {
		c.Events.SubjectPrefix = other.Events.SubjectPrefix
	}
}
