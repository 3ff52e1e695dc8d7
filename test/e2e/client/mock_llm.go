package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// MockLLMClient talks to the mock LLM fixture server (cmd/mock-llm).
// Scenarios check it is up before running and read its call counters
// to assert on how many completions the planner issued.
type MockLLMClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewMockLLMClient creates a client for the mock LLM server.
func NewMockLLMClient(baseURL string) *MockLLMClient {
	return &MockLLMClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// MockStats mirrors the mock server's /stats payload.
type MockStats struct {
	TotalCalls   int64            `json:"total_calls"`
	CallsByModel map[string]int64 `json:"calls_by_model"`
}

// IsHealthy reports whether the mock LLM server answers its health
// endpoint.
func (c *MockLLMClient) IsHealthy(ctx context.Context) bool {
	resp, err := c.get(ctx, "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// GetStats reads the call counters from the mock LLM server.
func (c *MockLLMClient) GetStats(ctx context.Context) (*MockStats, error) {
	resp, err := c.get(ctx, "/stats")
	if err != nil {
		return nil, fmt.Errorf("mock LLM stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mock LLM stats: HTTP %d", resp.StatusCode)
	}

	var stats MockStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode mock LLM stats: %w", err)
	}
	return &stats, nil
}

func (c *MockLLMClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}
