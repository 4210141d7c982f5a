package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// MockAdapter is a test backend returning a fixed raw payload.
type MockAdapter struct {
	mu       sync.Mutex
	Response json.RawMessage
	Err      error
	Requests []CallRequest
}

// Name implements Adapter.
func (m *MockAdapter) Name() string { return "mock" }

// Call records the request and returns the configured payload or error.
func (m *MockAdapter) Call(_ context.Context, req CallRequest) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

// Parse implements Adapter.
func (m *MockAdapter) Parse(raw json.RawMessage) Reply {
	return Finalize(ParseRaw(raw))
}

var _ Adapter = (*MockAdapter)(nil)
