// Copyright 2026 © The Verdant Authors
// SPDX-License-Identifier: Apache-2.0

// Package conversation owns the per-session conversational state: the
// append-only message log, the focused-entity pointer and the world
// overlay. Only the in-flight turn mutates a Context; the interaction
// queue's single-worker property serializes all access.
package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/verdantlabs/verdant/pkg/llm"
)

// FocusedEntity is the single world object under conversational attention.
// At most one is active; a new interaction replaces it.
type FocusedEntity struct {
	ID          string
	Type        string
	Name        string
	Description string
	State       map[string]any
	CustomData  map[string]any
}

// Harvestable reports whether the entity's state snapshot marks it
// harvestable.
func (e *FocusedEntity) Harvestable() bool {
	if e == nil || e.State == nil {
		return false
	}
	v, _ := e.State["harvestable"].(bool)
	return v
}

// Context holds one session's conversational state.
type Context struct {
	messages []llm.Message
	focused  *FocusedEntity
	overlay  map[string]any
}

// New creates an empty conversation context.
func New() *Context {
	return &Context{
		overlay: make(map[string]any),
	}
}

func (c *Context) append(role llm.Role, content string) {
	c.messages = append(c.messages, llm.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]string{"id": uuid.NewString()},
	})
}

// AddUserMessage appends a user message.
func (c *Context) AddUserMessage(content string) {
	c.append(llm.RoleUser, content)
}

// AddAssistantMessage appends an assistant message.
func (c *Context) AddAssistantMessage(content string) {
	c.append(llm.RoleAssistant, content)
}

// AddSystemMessage appends a system message.
func (c *Context) AddSystemMessage(content string) {
	c.append(llm.RoleSystem, content)
}

// AddInteractionMessage appends an interaction-origin message. It is stored
// distinctly but exported to backends as a user message.
func (c *Context) AddInteractionMessage(content string) {
	c.append(llm.RoleInteraction, content)
}

// Messages returns the log in insertion order. The returned slice is a
// copy; existing messages are never reordered or rewritten.
func (c *Context) Messages() []llm.Message {
	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// LastUserUtterance returns the content of the most recent user or
// interaction message, or "".
func (c *Context) LastUserUtterance() string {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == llm.RoleUser || c.messages[i].Role == llm.RoleInteraction {
			return c.messages[i].Content
		}
	}
	return ""
}

// SetFocusedEntity replaces the focused-entity pointer.
func (c *Context) SetFocusedEntity(e *FocusedEntity) {
	c.focused = e
}

// ClearFocusedEntity clears the focused-entity pointer.
func (c *Context) ClearFocusedEntity() {
	c.focused = nil
}

// FocusedEntity returns the current focused entity, or nil.
func (c *Context) FocusedEntity() *FocusedEntity {
	return c.focused
}

// UpdateWorldOverlay shallow-merges partial into the world overlay.
func (c *Context) UpdateWorldOverlay(partial map[string]any) {
	for k, v := range partial {
		c.overlay[k] = v
	}
}

// WorldOverlay returns a copy of the overlay record.
func (c *Context) WorldOverlay() map[string]any {
	out := make(map[string]any, len(c.overlay))
	for k, v := range c.overlay {
		out[k] = v
	}
	return out
}

// Reset clears messages and the focused entity. The world overlay persists:
// it is session state, not conversational state.
func (c *Context) Reset() {
	c.messages = nil
	c.focused = nil
}
