// Package client provides HTTP clients for e2e scenarios.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sl5234/daylytics/analysis"
	"github.com/sl5234/daylytics/server"
	"github.com/sl5234/daylytics/test/e2e/config"
)

// HTTPClient drives the daylytics JSON API. baseURL includes the path
// prefix, e.g. "http://127.0.0.1:8080/api/v1".
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a client for the API at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Analyze runs an analysis via POST /analysis.
func (c *HTTPClient) Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error) {
	var result analysis.Result
	if err := c.postJSON(ctx, "/analysis", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Plan asks the planner for a workflow via POST /plan without
// executing it.
func (c *HTTPClient) Plan(ctx context.Context, prompt string) (*server.PlanResponse, error) {
	var resp server.PlanResponse
	if err := c.postJSON(ctx, "/plan", server.PlanRequest{Prompt: prompt}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Converse plans and executes a workflow via POST /conversation.
func (c *HTTPClient) Converse(ctx context.Context, req server.ConversationRequest) (*server.ConversationResponse, error) {
	var resp server.ConversationResponse
	if err := c.postJSON(ctx, "/conversation", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health retrieves the server health via GET /health.
func (c *HTTPClient) Health(ctx context.Context) (*server.HealthStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var health server.HealthStatus
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w (body: %s)", err, string(body))
	}

	return &health, nil
}

// WaitForHealthy polls the health endpoint until the server reports
// healthy or the context expires.
func (c *HTTPClient) WaitForHealthy(ctx context.Context) error {
	ticker := time.NewTicker(config.DefaultPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for healthy server at %s", c.baseURL)
		case <-ticker.C:
			health, err := c.Health(ctx)
			if err == nil && health.Healthy {
				return nil
			}
		}
	}
}

// postJSON sends a POST with a JSON body and decodes the JSON reply
// into out. Status codes of 400 and above are returned as errors with
// the body included.
func (c *HTTPClient) postJSON(ctx context.Context, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w (body: %s)", err, string(body))
	}

	return nil
}
