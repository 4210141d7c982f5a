package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// ScriptedMockAdapter returns a pre-defined sequence of raw payloads.
// Useful for testing the act-then-narrate follow-up protocol.
type ScriptedMockAdapter struct {
	mu        sync.Mutex
	Responses []json.RawMessage
	Err       error
	// CallCount tracks how many times Call has been invoked.
	CallCount int
	// Requests records every call for assertions.
	Requests []CallRequest
}

// NewScriptedMock creates a scripted mock from raw payload strings.
func NewScriptedMock(responses ...string) *ScriptedMockAdapter {
	s := &ScriptedMockAdapter{}
	for _, r := range responses {
		s.Responses = append(s.Responses, json.RawMessage(r))
	}
	return s
}

// Name implements Adapter.
func (s *ScriptedMockAdapter) Name() string { return "scripted-mock" }

// Call pops the next scripted payload or returns the configured error.
func (s *ScriptedMockAdapter) Call(_ context.Context, req CallRequest) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CallCount++
	s.Requests = append(s.Requests, req)

	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.Responses) == 0 {
		return nil, errors.New("scripted mock: no more responses available")
	}

	raw := s.Responses[0]
	s.Responses = s.Responses[1:]
	return raw, nil
}

// Parse implements Adapter.
func (s *ScriptedMockAdapter) Parse(raw json.RawMessage) Reply {
	return Finalize(ParseRaw(raw))
}

var _ Adapter = (*ScriptedMockAdapter)(nil)
