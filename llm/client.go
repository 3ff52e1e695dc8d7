// Package llm is the provider-agnostic chat client behind the planning
// and categorization calls. Endpoint selection, fallback order, and
// circuit state live in model.Registry; this package owns the wire
// mechanics: request encoding, retries with backoff, and failure
// classification.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sl5234/daylytics/model"
)

// responseBodyCap bounds how much of a reply the client will read.
// No chat reply this service asks for comes anywhere near it.
const responseBodyCap = 10 << 20

// defaultCallTimeout allows for slow local models.
const defaultCallTimeout = 180 * time.Second

// Client resolves a capability to an endpoint chain and completes chat
// requests against it, retrying transient failures and falling back
// down the chain.
type Client struct {
	registry   *model.Registry
	httpClient *http.Client
	retry      RetryConfig
	logger     *slog.Logger
}

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// Request asks for a completion under a named capability. The registry
// decides which endpoints serve it and in what order.
type Request struct {
	Capability  string
	Messages    []Message
	Temperature *float64 // nil for endpoint default, 0 for deterministic
	MaxTokens   int      // 0 for endpoint default
}

// TokenUsage reports token consumption when the endpoint provides it.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the completed chat reply.
type Response struct {
	// RequestID correlates this call across logs and results. Complete
	// stamps it; providers leave it empty.
	RequestID string

	// Content is the generated text.
	Content string

	// Model is the model that actually served the request, which may be
	// a fallback rather than the preferred one.
	Model string

	Usage        TokenUsage
	FinishReason string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(rc RetryConfig) ClientOption {
	return func(c *Client) { c.retry = rc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient builds a client over the given registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:   registry,
		retry:      DefaultRetryConfig(),
		httpClient: &http.Client{Timeout: defaultCallTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends the request to the first healthy endpoint serving its
// capability, walking the fallback chain until one succeeds. A fatal
// error from any endpoint aborts the whole call, since the next
// endpoint would reject the same request for the same reason.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Capability == "" {
		return nil, fmt.Errorf("request needs a capability")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("request needs at least one message")
	}

	capability, err := model.ParseCapability(req.Capability)
	if err != nil {
		// Unknown names pass through so the registry can route them to
		// its default endpoint.
		capability = model.Capability(req.Capability)
	}
	chain := c.registry.GetAvailableFallbackChain(capability)
	if len(chain) == 0 {
		return nil, fmt.Errorf("no models configured for capability %s", req.Capability)
	}

	id := uuid.NewString()
	log := c.logger.With("request_id", id, "capability", req.Capability)

	var lastErr error
	for _, name := range chain {
		ep := c.registry.GetEndpoint(name)
		if ep == nil || !c.registry.IsEndpointAvailable(name) {
			continue
		}

		resp, err := c.completeVia(ctx, log, name, ep, req)
		if err == nil {
			resp.RequestID = id
			return resp, nil
		}
		if IsFatal(err) {
			log.Warn("llm call failed terminally", "model", name, "error", err)
			return nil, err
		}
		lastErr = err
		log.Warn("endpoint failed, falling back",
			"model", name,
			"provider", ep.Provider,
			"error", err)
	}

	return nil, fmt.Errorf("all endpoints failed for capability %s: %w", req.Capability, lastErr)
}

// completeVia runs the per-endpoint retry loop. Success and exhaustion
// feed the registry's circuit breaker; fatal errors do not, because an
// auth or request-shape failure says nothing about endpoint health.
func (c *Client) completeVia(ctx context.Context, log *slog.Logger, name string, ep *model.EndpointConfig, req Request) (*Response, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.Attempts; attempt++ {
		resp, err := c.call(ctx, ep, req)
		if err == nil {
			c.registry.MarkEndpointSuccess(name)
			return resp, nil
		}
		if IsFatal(err) {
			return nil, err
		}
		lastErr = err
		if attempt == c.retry.Attempts {
			break
		}

		delay := c.retry.backoffFor(attempt)
		log.Debug("retrying llm call",
			"model", name,
			"attempt", attempt,
			"delay", delay,
			"error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	c.registry.MarkEndpointFailure(name)
	return nil, lastErr
}

// call performs one HTTP round trip against the endpoint.
func (c *Client) call(ctx context.Context, ep *model.EndpointConfig, req Request) (*Response, error) {
	prov := providerFor(ep.Provider)
	if prov == nil {
		return nil, Fatal(fmt.Errorf("no provider registered as %q", ep.Provider))
	}

	payload, err := prov.MarshalRequest(ep.Model, req.Messages, GenOptions{
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, Fatal(fmt.Errorf("encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, prov.Endpoint(ep.URL), bytes.NewReader(payload))
	if err != nil {
		return nil, Fatal(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	prov.Authenticate(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, Transient(fmt.Errorf("call %s: %w", ep.Provider, err))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, responseBodyCap))
	if err != nil {
		return nil, Transient(fmt.Errorf("read reply: %w", err))
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyStatus(httpResp.StatusCode, body)
	}

	return prov.UnmarshalResponse(body)
}

// classifyStatus sorts non-200 replies. Overload and server-side
// failures may clear on their own; everything else, auth and bad
// requests included, never will.
func classifyStatus(code int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	err := fmt.Errorf("endpoint returned %d: %s", code, msg)

	if code == http.StatusTooManyRequests || code >= 500 {
		return Transient(err)
	}
	return Fatal(err)
}
