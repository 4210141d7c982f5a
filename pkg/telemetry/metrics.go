// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/verdantlabs/verdant/pkg/errors"
)

// TurnMetrics tracks conversation turns, tool dispatch and queue pressure
// for production monitoring.
type TurnMetrics struct {
	turnCounter     metric.Int64Counter
	toolCounter     metric.Int64Counter
	backendLatency  metric.Float64Histogram
	queueDepthGauge metric.Int64Gauge
	queueDropCount  metric.Int64Counter
}

// NewTurnMetrics creates a turn metrics tracker with OTEL meters.
func NewTurnMetrics() (*TurnMetrics, error) {
	meter := otel.Meter("verdant/agent")

	turnCounter, err := meter.Int64Counter(
		"verdant.turns.total",
		metric.WithDescription("Completed turns by outcome"),
	)
	if err != nil {
		return nil, err
	}

	toolCounter, err := meter.Int64Counter(
		"verdant.tools.executed",
		metric.WithDescription("Tool executions by tool name and success"),
	)
	if err != nil {
		return nil, err
	}

	backendLatency, err := meter.Float64Histogram(
		"verdant.backend.latency",
		metric.WithDescription("Backend call latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	queueDepthGauge, err := meter.Int64Gauge(
		"verdant.queue.depth",
		metric.WithDescription("Waiting interactions in the queue"),
	)
	if err != nil {
		return nil, err
	}

	queueDropCount, err := meter.Int64Counter(
		"verdant.queue.dropped",
		metric.WithDescription("Interactions dropped by cause (debounce, eviction, timeout, cancel)"),
	)
	if err != nil {
		return nil, err
	}

	return &TurnMetrics{
		turnCounter:     turnCounter,
		toolCounter:     toolCounter,
		backendLatency:  backendLatency,
		queueDepthGauge: queueDepthGauge,
		queueDropCount:  queueDropCount,
	}, nil
}

// RecordTurn counts a completed turn.
func (tm *TurnMetrics) RecordTurn(ctx context.Context, outcome string) {
	if tm == nil {
		return
	}
	tm.turnCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

// RecordTool counts one tool execution.
func (tm *TurnMetrics) RecordTool(ctx context.Context, tool string, success bool) {
	if tm == nil {
		return
	}
	tm.toolCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.Bool("success", success),
	))
}

// RecordBackendLatency records one backend round trip.
func (tm *TurnMetrics) RecordBackendLatency(ctx context.Context, backend string, seconds float64) {
	if tm == nil {
		return
	}
	tm.backendLatency.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("backend", backend),
	))
}

// RecordQueueDepth reports the current waiting-queue depth.
func (tm *TurnMetrics) RecordQueueDepth(ctx context.Context, depth int) {
	if tm == nil {
		return
	}
	tm.queueDepthGauge.Record(ctx, int64(depth))
}

// RecordQueueDrop counts a dropped interaction by cause code.
func (tm *TurnMetrics) RecordQueueDrop(ctx context.Context, cause errors.ErrorCode) {
	if tm == nil {
		return
	}
	tm.queueDropCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cause", string(cause)),
	))
}
