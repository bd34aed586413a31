// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dag provides the concurrent workflow engine.
//
// A Workflow is a directed acyclic graph of named Units joined by edges.
// An edge may carry a Condition that gates it and a Transform applied to
// the data it forwards. Connect rejects any edge that would close a cycle.
//
// # Execution
//
// ExecuteWorkflow dispatches every start node concurrently with the same
// input. When a node succeeds, each outgoing edge whose condition passes
// forwards the (transformed) output to its target. A target runs once all
// of its incoming edges have settled, where an edge settles by firing, by
// having its condition evaluate false, or by its source failing. Inputs
// that reached a join are combined in registration order:
//
//	[From a] output of a
//
//	---
//
//	[From b] output of b
//
// Every node runs at most once per run. Failures (unit errors, timeouts,
// cancellation) are recorded in the returned Results and stop propagation
// along that node's edges; they never abort other branches. Nodes that
// were never reached are absent from Results.
//
// # Diagnostics
//
// FindExecutionPaths, DetectPotentialDeadlocks, Structure and
// ExportGraphviz inspect the graph without executing anything.
//
// # Observability
//
// Runs emit OpenTelemetry spans (workflow.Execute, workflow.node) and
// metrics through the global providers, and log through log/slog with the
// workflow name and run id attached.
package dag
