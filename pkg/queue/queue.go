// Copyright 2026 © The Verdant Authors
// SPDX-License-Identifier: Apache-2.0

// Package queue serializes interaction bursts into agent turns: a single
// worker drains a bounded FIFO, a per-type debounce window absorbs rapid
// repeats, and a per-item timeout keeps one slow turn from wedging the
// session.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/verdantlabs/verdant/pkg/errors"
	"github.com/verdantlabs/verdant/pkg/resilience"
	"github.com/verdantlabs/verdant/pkg/telemetry"
)

// Task is the unit of deferred work an item carries, typically one agent
// turn. The context is cancelled when the item's timeout expires.
type Task func(ctx context.Context) (any, error)

// Pending is the caller's handle on an enqueued item. It resolves exactly
// once: with the task's result, or with a typed error when the item is
// evicted, cancelled, or timed out.
type Pending struct {
	ID   string
	Type string

	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

func newPending(typ string) *Pending {
	return &Pending{
		ID:   uuid.NewString(),
		Type: typ,
		done: make(chan struct{}),
	}
}

func (p *Pending) resolve(value any, err error) {
	p.once.Do(func() {
		p.value = value
		p.err = err
		close(p.done)
	})
}

// Done is closed when the item has resolved.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the item resolves or ctx is cancelled.
func (p *Pending) Wait(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return p.value, p.err
	}
}

// Config sets queue behavior. Zero values disable the corresponding limit.
type Config struct {
	// Debounce drops a new item when one of the same type was accepted
	// within the window.
	Debounce time.Duration
	// MaxDepth bounds the waiting list; the oldest waiting item is evicted
	// when exceeded. The in-flight item is never evicted.
	MaxDepth int
	// Timeout bounds each task's run time.
	Timeout time.Duration
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		Debounce: 300 * time.Millisecond,
		MaxDepth: 8,
		Timeout:  30 * time.Second,
	}
}

type item struct {
	typ     string
	data    map[string]any
	task    Task
	pending *Pending
}

// Queue is a single-worker interaction queue.
type Queue struct {
	cfg     Config
	metrics *telemetry.TurnMetrics

	mu       sync.Mutex
	waiting  []*item
	lastSeen map[string]time.Time
	closed   bool

	wake chan struct{}
	quit chan struct{}
	wg   sync.WaitGroup
}

// Option configures a Queue.
type Option func(*Queue)

// WithMetrics attaches turn metrics for depth and drop reporting.
func WithMetrics(m *telemetry.TurnMetrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// New creates a queue and starts its worker.
func New(cfg Config, opts ...Option) *Queue {
	q := &Queue{
		cfg:      cfg,
		lastSeen: make(map[string]time.Time),
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.wg.Add(1)
	go q.work()
	return q
}

// Enqueue adds an item. It returns a typed error immediately when the item
// falls inside its type's debounce window; acceptance may still end in
// eviction, visible on the returned Pending.
func (q *Queue) Enqueue(typ string, data map[string]any, task Task) (*Pending, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, errors.New(errors.CodeQueueCancelled, "queue is closed", nil)
	}

	now := time.Now()
	if q.cfg.Debounce > 0 {
		if last, ok := q.lastSeen[typ]; ok && now.Sub(last) < q.cfg.Debounce {
			q.metrics.RecordQueueDrop(context.Background(), errors.CodeDebounced)
			return nil, errors.New(errors.CodeDebounced,
				"interaction dropped by debounce window", nil).
				WithContext("type", typ)
		}
	}
	q.lastSeen[typ] = now

	it := &item{typ: typ, data: data, task: task, pending: newPending(typ)}
	q.waiting = append(q.waiting, it)

	if q.cfg.MaxDepth > 0 && len(q.waiting) > q.cfg.MaxDepth {
		evicted := q.waiting[0]
		q.waiting = q.waiting[1:]
		evicted.pending.resolve(nil, errors.New(errors.CodeQueueDropped,
			"interaction evicted from a full queue", nil).
			WithContext("type", evicted.typ))
		q.metrics.RecordQueueDrop(context.Background(), errors.CodeQueueDropped)
	}

	q.metrics.RecordQueueDepth(context.Background(), len(q.waiting))
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return it.pending, nil
}

// Depth reports the number of waiting items, excluding the in-flight one.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// CancelByType removes all waiting items of a type, resolving each with a
// cancellation error. The in-flight item is unaffected. Returns the count.
func (q *Queue) CancelByType(typ string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.waiting[:0]
	cancelled := 0
	for _, it := range q.waiting {
		if it.typ == typ {
			it.pending.resolve(nil, errors.New(errors.CodeQueueCancelled,
				"interaction cancelled", nil).WithContext("type", typ))
			q.metrics.RecordQueueDrop(context.Background(), errors.CodeQueueCancelled)
			cancelled++
			continue
		}
		kept = append(kept, it)
	}
	q.waiting = kept
	q.metrics.RecordQueueDepth(context.Background(), len(q.waiting))
	return cancelled
}

// Clear removes every waiting item. Returns the count.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	cleared := len(q.waiting)
	for _, it := range q.waiting {
		it.pending.resolve(nil, errors.New(errors.CodeQueueCancelled,
			"interaction cancelled", nil).WithContext("type", it.typ))
		q.metrics.RecordQueueDrop(context.Background(), errors.CodeQueueCancelled)
	}
	q.waiting = nil
	q.metrics.RecordQueueDepth(context.Background(), 0)
	return cleared
}

// Close stops the worker after the in-flight item finishes and cancels all
// waiting items.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.quit)
	q.wg.Wait()
	q.Clear()
}

func (q *Queue) work() {
	defer q.wg.Done()
	for {
		select {
		case <-q.quit:
			return
		case <-q.wake:
			q.drain()
		}
	}
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.waiting) == 0 {
			q.mu.Unlock()
			return
		}
		it := q.waiting[0]
		q.waiting = q.waiting[1:]
		q.metrics.RecordQueueDepth(context.Background(), len(q.waiting))
		q.mu.Unlock()

		q.run(it)
	}
}

// run executes one item under the per-item timeout. On expiry the caller is
// released with a timeout error while the task's goroutine winds down on
// its cancelled context.
func (q *Queue) run(it *item) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctx, span := otel.Tracer("verdant/queue").Start(ctx, "Queue.Run",
		trace.WithAttributes(
			attribute.String("interaction.id", it.pending.ID),
			attribute.String("interaction.type", it.typ),
		))
	defer span.End()

	value, err := resilience.WithTimeoutResult(ctx,
		resilience.TimeoutConfig{Duration: q.cfg.Timeout},
		func() (any, error) { return it.task(ctx) },
	)
	if errors.CodeOf(err) == errors.CodeTimeout {
		q.metrics.RecordQueueDrop(context.Background(), errors.CodeTimeout)
	}
	it.pending.resolve(value, err)
}
