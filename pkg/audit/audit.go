// SPDX-License-Identifier: Apache-2.0

// Package audit persists the sequence of side effects each turn produced,
// so a session can be reconstructed after the fact.
package audit

import (
	"context"
	"time"
)

// Event is one audited record: either a turn summary or a single tool
// execution within a turn.
type Event struct {
	TurnID     string
	Kind       string // "turn" or "tool"
	Origin     string // "text" or "interaction"
	Input      string
	Tool       string
	Arguments  map[string]any
	Success    bool
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Filter selects events from a store.
type Filter struct {
	TurnID string
	Kind   string
	Limit  int
}

// Store records and lists audit events.
type Store interface {
	Record(ctx context.Context, event Event) error
	List(ctx context.Context, filter Filter) ([]Event, error)
}

// NopStore discards every event. Used when auditing is disabled.
type NopStore struct{}

// Record implements Store.
func (NopStore) Record(context.Context, Event) error { return nil }

// List implements Store.
func (NopStore) List(context.Context, Filter) ([]Event, error) { return nil, nil }
