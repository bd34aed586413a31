// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dag

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("rigs.workflow")
	meter  = otel.Meter("rigs.workflow")
)

// engineMetrics holds the workflow instruments. Instruments that failed to
// initialize stay nil and are skipped.
type engineMetrics struct {
	once sync.Once

	nodeLatency   metric.Float64Histogram
	nodeSuccesses metric.Int64Counter
	nodeFailures  metric.Int64Counter
	activeNodes   metric.Int64UpDownCounter
	runLatency    metric.Float64Histogram
}

// initMetrics lazily creates the instruments. Failures are logged once and
// execution continues without the affected instrument.
func (w *Workflow) initMetrics() {
	m := w.metrics
	m.once.Do(func() {
		var initErrors []string
		var err error

		m.nodeLatency, err = meter.Float64Histogram("rigs_workflow_node_duration_seconds",
			metric.WithDescription("Time spent executing each workflow node"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "node_latency: "+err.Error())
		}

		m.nodeSuccesses, err = meter.Int64Counter("rigs_workflow_node_success_total",
			metric.WithDescription("Number of successful node executions"),
		)
		if err != nil {
			initErrors = append(initErrors, "node_successes: "+err.Error())
		}

		m.nodeFailures, err = meter.Int64Counter("rigs_workflow_node_failure_total",
			metric.WithDescription("Number of failed node executions"),
		)
		if err != nil {
			initErrors = append(initErrors, "node_failures: "+err.Error())
		}

		m.activeNodes, err = meter.Int64UpDownCounter("rigs_workflow_active_nodes",
			metric.WithDescription("Number of currently executing nodes"),
		)
		if err != nil {
			initErrors = append(initErrors, "active_nodes: "+err.Error())
		}

		m.runLatency, err = meter.Float64Histogram("rigs_workflow_run_duration_seconds",
			metric.WithDescription("Total workflow run time"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "run_latency: "+err.Error())
		}

		if len(initErrors) > 0 {
			w.logger.Error("failed to initialize some workflow metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

func (m *engineMetrics) nodeStarted(ctx context.Context) func() {
	if m.activeNodes == nil {
		return func() {}
	}
	m.activeNodes.Add(ctx, 1)
	return func() { m.activeNodes.Add(ctx, -1) }
}

func (m *engineMetrics) nodeFinished(ctx context.Context, workflow, node string, d time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("workflow", workflow),
		attribute.String("node", node),
	)
	if m.nodeLatency != nil {
		m.nodeLatency.Record(ctx, d.Seconds(), attrs)
	}
	if err != nil {
		if m.nodeFailures != nil {
			m.nodeFailures.Add(ctx, 1, attrs)
		}
		return
	}
	if m.nodeSuccesses != nil {
		m.nodeSuccesses.Add(ctx, 1, attrs)
	}
}

func (m *engineMetrics) runFinished(ctx context.Context, workflow string, d time.Duration) {
	if m.runLatency != nil {
		m.runLatency.Record(ctx, d.Seconds(),
			metric.WithAttributes(attribute.String("workflow", workflow)),
		)
	}
}
