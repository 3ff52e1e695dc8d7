// Package providers holds the wire-dialect adapters the llm client
// selects by endpoint configuration. Importing the package registers
// all of them.
package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/sl5234/daylytics/llm"
)

// AnthropicProvider speaks the Anthropic messages API.
type AnthropicProvider struct{}

const anthropicVersion = "2023-06-01"

// anthropicDefaultMaxTokens applies when the request leaves MaxTokens
// unset; the messages API rejects requests without a limit.
const anthropicDefaultMaxTokens = 4096

func init() {
	llm.Register(&AnthropicProvider{})
}

func (a *AnthropicProvider) Name() string { return "anthropic" }

func (a *AnthropicProvider) Endpoint(base string) string {
	if base == "" {
		base = "https://api.anthropic.com"
	}
	return strings.TrimSuffix(base, "/") + "/v1/messages"
}

func (a *AnthropicProvider) Authenticate(req *http.Request) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		req.Header.Set("x-api-key", key)
	}
	req.Header.Set("anthropic-version", anthropicVersion)
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []chatMessage `json:"messages"`
	System      string        `json:"system,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// MarshalRequest encodes for the messages API, which wants the system
// prompt as a top-level field rather than a message.
func (a *AnthropicProvider) MarshalRequest(model string, msgs []llm.Message, opts llm.GenOptions) ([]byte, error) {
	wire := anthropicRequest{
		Model:       model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	for _, m := range msgs {
		if m.Role == "system" {
			wire.System = m.Content
			continue
		}
		wire.Messages = append(wire.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	if wire.MaxTokens <= 0 {
		wire.MaxTokens = anthropicDefaultMaxTokens
	}
	return json.Marshal(wire)
}

func (a *AnthropicProvider) UnmarshalResponse(body []byte) (*llm.Response, error) {
	var wire anthropicResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}

	var content strings.Builder
	for _, block := range wire.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &llm.Response{
		Content: content.String(),
		Model:   wire.Model,
		Usage: llm.TokenUsage{
			PromptTokens:     wire.Usage.InputTokens,
			CompletionTokens: wire.Usage.OutputTokens,
			TotalTokens:      wire.Usage.InputTokens + wire.Usage.OutputTokens,
		},
		FinishReason: wire.StopReason,
	}, nil
}
