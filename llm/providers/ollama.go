package providers

import (
	"net/http"
	"os"
	"strings"

	"github.com/sl5234/daylytics/llm"
)

// OllamaProvider speaks the OpenAI-compatible chat completions dialect
// served by Ollama, vLLM, and similar local runtimes.
type OllamaProvider struct{}

func init() {
	llm.Register(&OllamaProvider{})
}

func (o *OllamaProvider) Name() string { return "ollama" }

// Endpoint appends the chat completions path unless the base already
// carries it, so both "http://host:11434/v1" and a full path work in
// configuration.
func (o *OllamaProvider) Endpoint(base string) string {
	if base == "" {
		base = "http://localhost:11434/v1"
	}
	base = strings.TrimSuffix(base, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

// Authenticate sets a bearer token when one is configured. Local
// runtimes ignore it; OpenRouter-style gateways require it.
func (o *OllamaProvider) Authenticate(req *http.Request) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
}

func (o *OllamaProvider) MarshalRequest(model string, msgs []llm.Message, opts llm.GenOptions) ([]byte, error) {
	return marshalChatRequest(model, msgs, opts)
}

func (o *OllamaProvider) UnmarshalResponse(body []byte) (*llm.Response, error) {
	return unmarshalChatResponse(body)
}
