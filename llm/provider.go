package llm

import (
	"net/http"
	"sync"
)

// GenOptions carries the generation knobs shared by every dialect.
type GenOptions struct {
	// Temperature is nil for the endpoint default, 0 for deterministic.
	Temperature *float64

	// MaxTokens limits the reply length. 0 leaves it to the endpoint.
	MaxTokens int
}

// Provider adapts the client to one wire dialect (OpenAI-style chat
// completions, Anthropic messages, and so on). Implementations live in
// llm/providers and register themselves on import.
type Provider interface {
	// Name is the identifier endpoint configuration refers to.
	Name() string

	// Endpoint resolves the request URL from the configured base URL.
	Endpoint(base string) string

	// Authenticate sets whatever headers the dialect needs.
	Authenticate(req *http.Request)

	// MarshalRequest encodes a chat request for the wire.
	MarshalRequest(model string, msgs []Message, opts GenOptions) ([]byte, error)

	// UnmarshalResponse decodes the wire reply.
	UnmarshalResponse(body []byte) (*Response, error)
}

var (
	providersMu sync.RWMutex
	providers   = map[string]Provider{}
)

// Register makes a provider selectable by endpoint configuration.
// Provider packages call this from init.
func Register(p Provider) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[p.Name()] = p
}

func providerFor(name string) Provider {
	providersMu.RLock()
	defer providersMu.RUnlock()
	return providers[name]
}

// ProviderNames returns the registered provider identifiers, for
// configuration error messages.
func ProviderNames() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}
