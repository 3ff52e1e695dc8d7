package providers

import (
	"net/http"
	"os"
	"strings"

	"github.com/sl5234/daylytics/llm"
)

// OpenAIProvider targets the hosted OpenAI API (or OpenRouter). Same
// dialect as ollama, different default URL and mandatory auth.
type OpenAIProvider struct{}

func init() {
	llm.Register(&OpenAIProvider{})
}

func (o *OpenAIProvider) Name() string { return "openai" }

func (o *OpenAIProvider) Endpoint(base string) string {
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	base = strings.TrimSuffix(base, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

func (o *OpenAIProvider) Authenticate(req *http.Request) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	// OpenRouter attribution headers, harmless elsewhere.
	if site := os.Getenv("OPENROUTER_SITE_URL"); site != "" {
		req.Header.Set("HTTP-Referer", site)
	}
	if name := os.Getenv("OPENROUTER_SITE_NAME"); name != "" {
		req.Header.Set("X-Title", name)
	}
}

func (o *OpenAIProvider) MarshalRequest(model string, msgs []llm.Message, opts llm.GenOptions) ([]byte, error) {
	return marshalChatRequest(model, msgs, opts)
}

func (o *OpenAIProvider) UnmarshalResponse(body []byte) (*llm.Response, error) {
	return unmarshalChatResponse(body)
}
