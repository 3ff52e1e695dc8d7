// Package testutil holds test doubles for code that talks to the llm
// client through a Completer-style interface.
package testutil

import (
	"context"
	"sync"

	"github.com/sl5234/daylytics/llm"
)

// MockLLMClient plays back scripted responses in order and records what
// was asked of it. Once the script runs out it returns empty
// completions, and a set Err short-circuits everything. Safe for
// concurrent use.
type MockLLMClient struct {
	// Responses are returned one per Complete call, in order.
	Responses []*llm.Response

	// Err, when set, is returned instead of any response.
	Err error

	mu       sync.Mutex
	requests []llm.Request
	next     int
}

// Complete returns the next scripted response.
func (m *MockLLMClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.next < len(m.Responses) {
		resp := m.Responses[m.next]
		m.next++
		return resp, nil
	}
	return &llm.Response{Model: "scripted"}, nil
}

// GetCallCount reports how many times Complete ran.
func (m *MockLLMClient) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// GetCapturedRequests returns a copy of every request seen so far.
func (m *MockLLMClient) GetCapturedRequests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Request, len(m.requests))
	copy(out, m.requests)
	return out
}
