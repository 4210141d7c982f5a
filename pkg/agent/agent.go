// Copyright 2026 © The Verdant Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent drives one conversation turn: context update, tool
// discovery, prompt build, backend call, sequential tool dispatch, the
// act-then-narrate follow-up call, and response assembly.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/verdantlabs/verdant/pkg/audit"
	"github.com/verdantlabs/verdant/pkg/conversation"
	"github.com/verdantlabs/verdant/pkg/core"
	"github.com/verdantlabs/verdant/pkg/errors"
	"github.com/verdantlabs/verdant/pkg/llm"
	"github.com/verdantlabs/verdant/pkg/skill"
	"github.com/verdantlabs/verdant/pkg/telemetry"
	"github.com/verdantlabs/verdant/pkg/world"
)

// ApologyText is the fixed reply shown on any backend transport failure.
const ApologyText = "Oh dear, I got a little distracted... give me a moment and ask me again?"

// InputType discriminates turn inputs.
type InputType string

const (
	InputText        InputType = "text"
	InputInteraction InputType = "interaction"
)

// InteractionEvent describes a UI-originated event routed to the agent.
type InteractionEvent struct {
	Type        string
	TargetID    string
	Description string
	Data        map[string]any
}

// Input is one turn's input: free-form text or an interaction event.
type Input struct {
	Type    InputType
	Content string
	Event   *InteractionEvent
}

// Output is the unit returned per turn. ShouldContinue is false iff at
// least one tool was executed: a completed action ends that turn's
// conversation pressure, while a pure-text turn invites further input.
type Output struct {
	Text           string
	ToolExecutions []skill.ToolExecution
	ShouldContinue bool
}

// Agent orchestrates turns against one conversation context. It has no
// internal concurrency; the interaction queue serializes callers.
type Agent struct {
	id        string
	persona   string
	backend   llm.Adapter
	registry  *skill.Registry
	conv      *conversation.Context
	snapshots world.SnapshotProvider
	resolver  world.EntityResolver
	auditor   audit.Store
	metrics   *telemetry.TurnMetrics
	tracer    trace.Tracer
}

// Option configures an Agent instance.
type Option func(*Agent) error

// New creates an Agent with a required id and options. A backend and a
// skill registry are required.
func New(id string, opts ...Option) (*Agent, error) {
	a := &Agent{
		id:      id,
		persona: defaultPersona,
		conv:    conversation.New(),
		auditor: audit.NopStore{},
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.id == "" {
		return nil, errors.New(errors.CodeInvalidInput, "agent id is required", nil)
	}
	if a.backend == nil {
		return nil, errors.New(errors.CodeInvalidInput, "agent backend is required", nil)
	}
	if a.registry == nil {
		return nil, errors.New(errors.CodeInvalidInput, "agent skill registry is required", nil)
	}
	a.tracer = otel.Tracer("verdant/agent")
	return a, nil
}

// WithBackend sets the model backend adapter.
func WithBackend(b llm.Adapter) Option {
	return func(a *Agent) error { a.backend = b; return nil }
}

// WithRegistry sets the skill registry.
func WithRegistry(r *skill.Registry) Option {
	return func(a *Agent) error { a.registry = r; return nil }
}

// WithConversation replaces the default conversation context.
func WithConversation(c *conversation.Context) Option {
	return func(a *Agent) error { a.conv = c; return nil }
}

// WithPersona sets the identity text for the system prompt.
func WithPersona(persona string) Option {
	return func(a *Agent) error { a.persona = persona; return nil }
}

// WithWorld attaches the world snapshot provider and entity resolver.
func WithWorld(snapshots world.SnapshotProvider, resolver world.EntityResolver) Option {
	return func(a *Agent) error {
		a.snapshots = snapshots
		a.resolver = resolver
		return nil
	}
}

// WithAudit attaches an audit store.
func WithAudit(s audit.Store) Option {
	return func(a *Agent) error {
		if s != nil {
			a.auditor = s
		}
		return nil
	}
}

// WithMetrics attaches turn metrics.
func WithMetrics(m *telemetry.TurnMetrics) Option {
	return func(a *Agent) error { a.metrics = m; return nil }
}

// Conversation exposes the agent's conversation context.
func (a *Agent) Conversation() *conversation.Context { return a.conv }

// UpdateState merges partial into the world overlay without running a turn.
func (a *Agent) UpdateState(partial map[string]any) {
	a.conv.UpdateWorldOverlay(partial)
}

// Greeting derives a greeting from focused-entity custom data if present,
// else a templated default.
func (a *Agent) Greeting() string {
	if focused := a.conv.FocusedEntity(); focused != nil {
		if greeting, ok := focused.CustomData["greeting"].(string); ok && greeting != "" {
			return greeting
		}
		if focused.Name != "" {
			return fmt.Sprintf("Hello! I see you are looking at %s.", focused.Name)
		}
	}
	return "Hello! Welcome to the garden. What shall we grow today?"
}

// Process drives one turn. Backend transport failure is not an error: it
// yields the apology output. Errors are reserved for inputs that cannot be
// routed at all.
func (a *Agent) Process(ctx context.Context, input Input) (*Output, error) {
	ctx, turnID := core.EnsureTurnID(ctx)
	ctx, span := a.tracer.Start(ctx, "Agent.Process", trace.WithAttributes(
		attribute.String("agent.id", a.id),
		attribute.String("turn.id", turnID),
		attribute.String("input.type", string(input.Type)),
	))
	defer span.End()
	started := time.Now()

	// ContextUpdate: refresh the overlay from a live snapshot.
	if a.snapshots != nil {
		snap := a.snapshots.Snapshot()
		overlay := map[string]any{"summary": snap.Summary}
		for k, v := range snap.Counters {
			overlay[k] = v
		}
		a.conv.UpdateWorldOverlay(overlay)
	}

	utterance, err := a.applyInput(input)
	if err != nil {
		return nil, err
	}

	// An event that did not route must cause no backend traffic at all, so
	// the bridge push happens only after input routing succeeds.
	if pusher, ok := a.backend.(llm.StatePusher); ok {
		if err := pusher.PushState(ctx, world.RenderOverlay(a.conv.WorldOverlay())); err != nil {
			slog.Warn("agent.state_push.failed", slog.String("error", err.Error()))
		}
	}

	// ToolDiscovery + PromptBuild + BackendCall.
	tools := a.registry.AvailableTools(a.conv)
	req := llm.CallRequest{
		Messages: a.conv.Messages(),
		System:   a.buildSystemPrompt(tools),
		Tools:    tools,
		Extra:    a.bridgeExtra(input),
	}

	reply, callErr := a.call(ctx, req)
	if callErr != nil {
		slog.Error("agent.backend.failed",
			slog.String("turn_id", turnID),
			slog.String("error", callErr.Error()),
		)
		a.conv.AddAssistantMessage(ApologyText)
		out := &Output{Text: ApologyText, ToolExecutions: []skill.ToolExecution{}, ShouldContinue: true}
		a.auditTurn(ctx, turnID, input, utterance, out, started)
		a.metrics.RecordTurn(ctx, "backend_error")
		return out, nil
	}

	// Downstream gating conditions are checked against what the user
	// actually said, never a model paraphrase.
	overwriteHarvestReason(reply.ToolCalls, utterance)

	// ToolDispatch, strictly in call order: later calls observe the side
	// effects of earlier ones.
	var executions []skill.ToolExecution
	for _, call := range reply.ToolCalls {
		toolStarted := time.Now()
		exec := a.registry.ExecuteTool(ctx, call.Name, call.Arguments, a.conv)
		executions = append(executions, exec)
		a.conv.AddSystemMessage(fmt.Sprintf("[tool %s] %s", exec.ToolName, exec.Result.Message))
		a.metrics.RecordTool(ctx, exec.ToolName, exec.Result.Success)
		a.recordAudit(ctx, audit.Event{
			TurnID:     turnID,
			Kind:       "tool",
			Origin:     string(input.Type),
			Tool:       exec.ToolName,
			Arguments:  exec.Arguments,
			Success:    exec.Result.Success,
			Message:    exec.Result.Message,
			StartedAt:  toolStarted,
			FinishedAt: time.Now(),
		})
	}

	text := reply.Text

	// FollowUpDecision: a tool call with no accompanying text would leave
	// the user with a silent action, so ask for a narration-only reply.
	if len(executions) > 0 && text == "" {
		text = a.followUp(ctx, input)
	}
	if text == "" {
		for _, exec := range executions {
			if exec.Result.Success && exec.Result.Message != "" {
				text = exec.Result.Message
				break
			}
		}
	}

	if text != "" {
		a.conv.AddAssistantMessage(text)
	}

	out := &Output{
		Text:           text,
		ToolExecutions: executions,
		ShouldContinue: len(executions) == 0,
	}
	a.auditTurn(ctx, turnID, input, utterance, out, started)
	a.metrics.RecordTurn(ctx, "ok")
	slog.Info("agent.turn.complete",
		slog.String("turn_id", turnID),
		slog.Int("tool_executions", len(executions)),
		slog.Bool("should_continue", out.ShouldContinue),
	)
	return out, nil
}

// applyInput mutates the conversation for this turn's input and returns
// the literal user utterance.
func (a *Agent) applyInput(input Input) (string, error) {
	switch input.Type {
	case InputText:
		a.conv.AddUserMessage(input.Content)
		return input.Content, nil
	case InputInteraction:
		event := input.Event
		if event == nil {
			return "", errors.New(errors.CodeInvalidInput, "interaction input requires an event", nil)
		}
		if a.resolver != nil && event.TargetID != "" {
			entity, ok := a.resolver.Resolve(event.TargetID)
			if !ok {
				return "", errors.New(errors.CodeNotFound,
					fmt.Sprintf("interaction target %q does not resolve", event.TargetID), nil)
			}
			a.conv.SetFocusedEntity(&conversation.FocusedEntity{
				ID:          entity.ID,
				Type:        entity.Type,
				Name:        entity.Name,
				Description: entity.Description,
				State:       entity.State,
				CustomData:  entity.CustomData,
			})
		}
		description := event.Description
		if description == "" {
			description = fmt.Sprintf("(%s interaction on %s)", event.Type, event.TargetID)
		}
		a.conv.AddInteractionMessage(description)
		return description, nil
	default:
		return "", errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("unknown input type %q", input.Type), nil)
	}
}

func (a *Agent) call(ctx context.Context, req llm.CallRequest) (llm.Reply, error) {
	started := time.Now()
	raw, err := a.backend.Call(ctx, req)
	a.metrics.RecordBackendLatency(ctx, a.backend.Name(), time.Since(started).Seconds())
	if err != nil {
		return llm.Reply{}, err
	}
	return a.backend.Parse(raw), nil
}

// followUp re-discovers tools (availability may have changed), rebuilds the
// prompt, and forces a text-only reply by offering an empty tool list. Tool
// calls from this second reply are ignored.
func (a *Agent) followUp(ctx context.Context, input Input) string {
	tools := a.registry.AvailableTools(a.conv)
	req := llm.CallRequest{
		Messages: a.conv.Messages(),
		System:   a.buildSystemPrompt(tools),
		Extra:    a.bridgeExtra(input),
	}
	reply, err := a.call(ctx, req)
	if err != nil {
		slog.Warn("agent.followup.failed", slog.String("error", err.Error()))
		return ""
	}
	return reply.Text
}

func (a *Agent) bridgeExtra(input Input) map[string]any {
	extra := map[string]any{
		"context": map[string]any{
			"overlay": a.conv.WorldOverlay(),
			"focused": focusedPayload(a.conv.FocusedEntity()),
		},
	}
	if input.Type == InputInteraction && input.Event != nil {
		extra["interaction"] = map[string]any{
			"type":        input.Event.Type,
			"targetId":    input.Event.TargetID,
			"description": input.Event.Description,
			"data":        input.Event.Data,
		}
	}
	return extra
}

func focusedPayload(e *conversation.FocusedEntity) map[string]any {
	if e == nil {
		return nil
	}
	return map[string]any{
		"id":          e.ID,
		"type":        e.Type,
		"name":        e.Name,
		"description": e.Description,
		"state":       e.State,
	}
}

// overwriteHarvestReason replaces the model-produced harvest reason with
// the literal originating user utterance, for calls from any source.
func overwriteHarvestReason(calls []llm.ToolCall, utterance string) {
	for _, call := range calls {
		if call.Name != "harvest" {
			continue
		}
		if call.Arguments == nil {
			continue
		}
		call.Arguments["reason"] = utterance
	}
}

func (a *Agent) recordAudit(ctx context.Context, event audit.Event) {
	if err := a.auditor.Record(ctx, event); err != nil {
		slog.Warn("agent.audit.failed", slog.String("error", err.Error()))
	}
}

func (a *Agent) auditTurn(ctx context.Context, turnID string, input Input, utterance string, out *Output, started time.Time) {
	a.recordAudit(ctx, audit.Event{
		TurnID:     turnID,
		Kind:       "turn",
		Origin:     string(input.Type),
		Input:      utterance,
		Success:    true,
		Message:    out.Text,
		StartedAt:  started,
		FinishedAt: time.Now(),
	})
}
