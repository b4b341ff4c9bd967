package llm

import (
	"context"
	"sync"
)

// MockClient is a test double for Client. It records every request.
type MockClient struct {
	ProviderName string
	RunFunc      func(ctx context.Context, req Request) (*Response, error)

	mu       sync.Mutex
	requests []Request
}

func (m *MockClient) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockClient) Run(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, req)
	}
	return &Response{Output: "mock response", Completed: true}, nil
}

// Requests returns a copy of the recorded requests.
func (m *MockClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}
