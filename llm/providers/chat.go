package providers

import (
	"encoding/json"
	"fmt"

	"github.com/sl5234/daylytics/llm"
)

// The OpenAI chat completions dialect, shared by the ollama and openai
// providers.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func marshalChatRequest(model string, msgs []llm.Message, opts llm.GenOptions) ([]byte, error) {
	wire := chatRequest{
		Model:       model,
		Messages:    make([]chatMessage, len(msgs)),
		Temperature: opts.Temperature,
	}
	for i, m := range msgs {
		wire.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	if opts.MaxTokens > 0 {
		wire.MaxTokens = &opts.MaxTokens
	}
	return json.Marshal(wire)
}

func unmarshalChatResponse(body []byte) (*llm.Response, error) {
	var wire chatResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return nil, fmt.Errorf("chat response has no choices")
	}

	return &llm.Response{
		Content: wire.Choices[0].Message.Content,
		Model:   wire.Model,
		Usage: llm.TokenUsage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		},
		FinishReason: wire.Choices[0].FinishReason,
	}, nil
}
