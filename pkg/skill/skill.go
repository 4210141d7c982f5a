// Copyright 2026 © The Verdant Authors
// SPDX-License-Identifier: Apache-2.0

// Package skill defines pluggable capability providers and the registry
// that aggregates their contextual tool lists and dispatches tool calls.
package skill

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/invopop/jsonschema"

	"github.com/verdantlabs/verdant/pkg/conversation"
	"github.com/verdantlabs/verdant/pkg/llm"
)

// ToolResult is the outcome of one tool execution. Execution never
// panics or errors past the skill boundary; failure is always a ToolResult
// with Success=false so the orchestrator can continue the turn.
type ToolResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Failure builds a failed ToolResult with a formatted message.
func Failure(format string, args ...any) ToolResult {
	return ToolResult{Success: false, Message: fmt.Sprintf(format, args...)}
}

// Success builds a successful ToolResult.
func Success(message string, data map[string]any) ToolResult {
	return ToolResult{Success: true, Message: message, Data: data}
}

// ToolExecution records one dispatched tool call, in call order.
type ToolExecution struct {
	SkillName string         `json:"skillName"`
	ToolName  string         `json:"toolName"`
	Arguments map[string]any `json:"arguments"`
	Result    ToolResult     `json:"result"`
}

// Skill is a capability provider. Availability and the tool list are
// recomputed every turn from the conversation context, so the same tool
// may appear or vanish between turns.
type Skill interface {
	Name() string

	// Available gates whether this skill participates at all this turn.
	Available(conv *conversation.Context) bool

	// Tools returns the contextual tool list. May be empty even when the
	// skill is available.
	Tools(conv *conversation.Context) []llm.ToolSpec

	// Execute runs a named tool. Unknown tool names yield a structured
	// failure, never an error.
	Execute(ctx context.Context, tool string, args map[string]any, conv *conversation.Context) ToolResult
}

// Registry aggregates skills and dispatches tool calls by name.
// Instances are constructor-injected, never process-wide.
type Registry struct {
	skills []Skill
}

// NewRegistry creates an empty registry.
func NewRegistry(skills ...Skill) *Registry {
	return &Registry{skills: skills}
}

// Register appends a skill. Registration order is discovery order.
func (r *Registry) Register(s Skill) {
	r.skills = append(r.skills, s)
}

// Unregister removes a skill by name.
func (r *Registry) Unregister(name string) {
	for i, s := range r.skills {
		if s.Name() == name {
			r.skills = append(r.skills[:i], r.skills[i+1:]...)
			return
		}
	}
}

// AvailableTools concatenates the tool lists of all available skills in
// registration order. This list is the tools argument for the backend call
// of the current turn.
func (r *Registry) AvailableTools(conv *conversation.Context) []llm.ToolSpec {
	var tools []llm.ToolSpec
	for _, s := range r.skills {
		if !s.Available(conv) {
			continue
		}
		tools = append(tools, s.Tools(conv)...)
	}
	return tools
}

// ExecuteTool dispatches a tool call to the first available skill whose
// tool list contains the name. A miss returns a structured "tool not
// found" failure so every call produces a ToolExecution.
func (r *Registry) ExecuteTool(ctx context.Context, name string, args map[string]any, conv *conversation.Context) ToolExecution {
	for _, s := range r.skills {
		if !s.Available(conv) {
			continue
		}
		if !offersTool(s, conv, name) {
			continue
		}
		result := s.Execute(ctx, name, args, conv)
		slog.Info("skill.tool.executed",
			slog.String("skill", s.Name()),
			slog.String("tool", name),
			slog.Bool("success", result.Success),
		)
		return ToolExecution{
			SkillName: s.Name(),
			ToolName:  name,
			Arguments: args,
			Result:    result,
		}
	}

	slog.Warn("skill.tool.unknown", slog.String("tool", name))
	return ToolExecution{
		SkillName: "unknown",
		ToolName:  name,
		Arguments: args,
		Result:    Failure("tool not found: %s", name),
	}
}

func offersTool(s Skill, conv *conversation.Context, name string) bool {
	for _, t := range s.Tools(conv) {
		if t.Name == name {
			return true
		}
	}
	return false
}

// reflectSchema builds a JSON Schema for a tool's argument struct.
func reflectSchema(v any) any {
	reflector := jsonschema.Reflector{DoNotReference: true}
	return reflector.Reflect(v)
}
