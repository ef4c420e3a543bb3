package llm

import (
	"context"
	"fmt"
	"sync"

	"conduit/internal/ports"
)

// Mock is a scriptable ports.LLMClient for tests: it replays canned
// responses in order and records every request it saw.
type Mock struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Requests  []ports.CompletionRequest
}

func (m *Mock) Model() string { return "mock" }

func (m *Mock) Complete(_ context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return nil, fmt.Errorf("mock exhausted after %d requests", len(m.Requests))
	}
	content := m.Responses[0]
	m.Responses = m.Responses[1:]
	return &ports.CompletionResponse{
		Content:          content,
		PromptTokens:     len(req.Messages),
		CompletionTokens: 1,
	}, nil
}
