// Package config provides configuration for the e2e harness.
package config

import "time"

// Default connection URLs. Scenarios start their own daylytics server
// in-process; the mock LLM runs separately (cmd/mock-llm) and is only
// required by the LLM scenarios.
const (
	DefaultMockLLMURL = "http://localhost:11434"
)

// Default timeouts.
const (
	DefaultSetupTimeout = 30 * time.Second
	DefaultStageTimeout = 30 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
)

// Fixture model names. The mock LLM resolves fixture files by the model
// name in the chat request, so these must match the files under
// test/fixtures/llm.
const (
	PlannerModel = "planner"
)

// Config holds the e2e harness configuration.
type Config struct {
	MockLLMURL   string        `json:"mock_llm_url"`
	SetupTimeout time.Duration `json:"setup_timeout"`
	StageTimeout time.Duration `json:"stage_timeout"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		MockLLMURL:   DefaultMockLLMURL,
		SetupTimeout: DefaultSetupTimeout,
		StageTimeout: DefaultStageTimeout,
	}
}
