// Copyright 2026 © The Verdant Authors
// SPDX-License-Identifier: Apache-2.0

// Package llm defines the backend adapter contract and message types used
// by the agent orchestrator.
package llm

import (
	"context"
	"encoding/json"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// RoleInteraction marks messages that originate from UI interaction
	// events. They are stored distinctly but exported to backends as user
	// messages.
	RoleInteraction Role = "interaction"
)

// Message is a single unit of communication.
type Message struct {
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// WireRole maps a role to what backends understand. Interaction messages
// travel as user messages.
func (m Message) WireRole() Role {
	if m.Role == RoleInteraction {
		return RoleUser
	}
	return m.Role
}

// ToolSpec declares a tool a backend may request. Parameters holds a JSON
// Schema describing the argument shape.
type ToolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters"`
}

// ToolCall is a backend's request to invoke a named tool. Arguments are an
// untyped bag; skills validate what they need at execution time.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Reply is the parsed outcome of one backend round trip.
type Reply struct {
	Text      string          `json:"text"`
	ToolCalls []ToolCall      `json:"tool_calls,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// CallRequest encapsulates the input for one backend call.
type CallRequest struct {
	Messages []Message
	System   string
	Tools    []ToolSpec
	// Extra carries backend-specific context; the bridge adapter expects
	// "context" and "interaction" entries.
	Extra map[string]any
}

// Adapter is the uniform backend contract: one round trip plus a parse
// step that never fails. Parse degrades malformed payloads to literal text
// with zero tool calls.
type Adapter interface {
	Name() string
	Call(ctx context.Context, req CallRequest) (json.RawMessage, error)
	Parse(raw json.RawMessage) Reply
}

// StatePusher is implemented by adapters that need a compact world-state
// snapshot pushed before each call (the bridge-style backend).
type StatePusher interface {
	PushState(ctx context.Context, state string) error
}
