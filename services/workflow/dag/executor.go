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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ExecuteUnit invokes a single unit directly.
//
// Description:
//
//	Bypasses traversal, memoization, edge settlement and the node timeout.
//	Only ctx bounds the call.
//
// Outputs:
//
//	string - The unit output.
//	error - *NotFoundError if name is unknown, *UnitError wrapping the
//	        unit's own failure, or ErrCanceled if ctx ends first.
func (w *Workflow) ExecuteUnit(ctx context.Context, name, input string) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}

	u, ok := w.Unit(name)
	if !ok {
		return "", notFound("node", name)
	}

	out, err := callUnit(ctx, u, input)
	if err != nil {
		if ctx.Err() != nil {
			return "", canceled(name, ctx.Err())
		}
		return "", &UnitError{Node: name, Err: err}
	}
	return out, nil
}

// ExecuteWorkflow runs the workflow from the given start nodes.
//
// Description:
//
//	Every start name is validated before anything runs. Each start node is
//	dispatched concurrently with input; success propagates along edges
//	whose condition passes, and a node with several incoming edges runs
//	once, after all of them settle, with the fired inputs aggregated as
//	"[From <source>] <input>" blocks in registration order.
//
//	Node failures (unit errors, timeouts, cancellation) are recorded in
//	the results and stop propagation along that node's edges only.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	starts - Names of the nodes to dispatch with input.
//	input - Initial input for every start node.
//
// Outputs:
//
//	Results - Outcome per reached node. Unreached nodes are absent.
//	error - Non-nil only if validation fails or ctx is already done.
func (w *Workflow) ExecuteWorkflow(ctx context.Context, starts []string, input string) (Results, error) {
	summary, err := w.Run(ctx, starts, input)
	if err != nil {
		return nil, err
	}
	return summary.Results, nil
}

// Run is ExecuteWorkflow returning the full run summary, including the
// run id used in logs, spans and observers.
func (w *Workflow) Run(ctx context.Context, starts []string, input string) (*RunSummary, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	w.initMetrics()

	w.mu.RLock()
	topo, startIdx, err := w.snapshotLocked(starts)
	if err == nil {
		for _, n := range w.nodes {
			if n != nil {
				n.setLast(nil)
			}
		}
	}
	w.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, canceled("", err)
	}

	run := newRunState(uuid.NewString(), topo, startIdx)
	startedAt := time.Now()

	ctx, span := tracer.Start(ctx, "workflow.Execute",
		trace.WithAttributes(
			attribute.String("workflow.name", w.name),
			attribute.String("workflow.run_id", run.id),
			attribute.StringSlice("workflow.starts", starts),
		),
	)
	defer span.End()

	logger := w.logger.With(
		slog.String("workflow", w.name),
		slog.String("run_id", run.id),
	)
	logger.Info("workflow started",
		slog.Any("starts", starts),
		slog.Int("nodes", len(topo.names)),
	)

	var g errgroup.Group
	for _, idx := range startIdx {
		g.Go(func() error {
			w.executeNode(ctx, run, logger, idx, input)
			return nil
		})
	}
	_ = g.Wait()

	duration := time.Since(startedAt)
	results := run.snapshot()
	w.metrics.runFinished(ctx, w.name, duration)

	failed := 0
	for _, o := range results {
		if !o.OK() {
			failed++
		}
	}
	span.SetAttributes(
		attribute.Int("workflow.nodes_executed", len(results)),
		attribute.Int("workflow.nodes_failed", failed),
	)
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d node(s) failed", failed))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	logger.Info("workflow completed",
		slog.Int64("duration_ms", duration.Milliseconds()),
		slog.Int("nodes_executed", len(results)),
		slog.Int("nodes_failed", failed),
	)

	summary := &RunSummary{
		RunID:     run.id,
		Workflow:  w.name,
		Starts:    append([]string(nil), starts...),
		Input:     input,
		StartedAt: startedAt,
		Duration:  duration,
		Results:   results,
	}
	w.notify(ctx, logger, *summary)
	return summary, nil
}

// executeNode runs one node at most once per run and propagates its
// outcome. Callers arriving while the node is in flight wait for it and
// share its outcome; callers arriving later get the memoized outcome.
func (w *Workflow) executeNode(ctx context.Context, run *runState, logger *slog.Logger, idx int, input string) Outcome {
	name := run.topo.names[idx]
	if o, ok := run.result(name); ok {
		return o
	}

	v, _, _ := run.claims.Do(name, func() (any, error) {
		if o, ok := run.result(name); ok {
			return o, nil
		}

		o := run.record(name, w.invoke(ctx, run, logger, idx, name, input))
		w.setLast(idx, name, o)
		w.propagate(ctx, run, logger, idx, o)
		return o, nil
	})
	return v.(Outcome)
}

// invoke calls the node's unit under the node timeout.
func (w *Workflow) invoke(ctx context.Context, run *runState, logger *slog.Logger, idx int, name, input string) Outcome {
	ctx, span := tracer.Start(ctx, "workflow.node",
		trace.WithAttributes(
			attribute.String("workflow.node", name),
			attribute.String("workflow.run_id", run.id),
			attribute.Int("workflow.input_bytes", len(input)),
		),
	)
	defer span.End()

	fail := func(err error) Outcome {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("node failed",
			slog.String("node", name),
			slog.String("error", err.Error()),
		)
		return Outcome{Err: err}
	}

	unit, ok := w.liveUnit(idx, name)
	if !ok {
		return fail(&ExecutionError{Node: name, Reason: "node removed during run"})
	}

	if w.sem != nil {
		if err := w.sem.Acquire(ctx, 1); err != nil {
			return fail(canceled(name, err))
		}
		defer w.sem.Release(1)
	}

	done := w.metrics.nodeStarted(ctx)
	defer done()

	logger.Debug("node starting", slog.String("node", name))

	nodeCtx, cancel := context.WithTimeout(ctx, w.nodeTimeout)
	defer cancel()

	start := time.Now()
	out, err := callUnit(nodeCtx, unit, input)
	duration := time.Since(start)

	if err != nil {
		switch {
		case ctx.Err() != nil:
			err = canceled(name, ctx.Err())
		case errors.Is(nodeCtx.Err(), context.DeadlineExceeded):
			err = &TimeoutError{Node: name, After: w.nodeTimeout}
		default:
			err = &UnitError{Node: name, Err: err}
		}
		w.metrics.nodeFinished(ctx, w.name, name, duration, err)
		return fail(err)
	}

	w.metrics.nodeFinished(ctx, w.name, name, duration, nil)
	span.SetStatus(codes.Ok, "")
	logger.Debug("node completed",
		slog.String("node", name),
		slog.Int64("duration_ms", duration.Milliseconds()),
	)
	return Outcome{Output: out}
}

// propagate settles every outgoing edge of idx and dispatches the targets
// that became ready, waiting for all of them.
func (w *Workflow) propagate(ctx context.Context, run *runState, logger *slog.Logger, idx int, o Outcome) {
	var g errgroup.Group

	for _, e := range run.topo.out[idx] {
		if !o.OK() {
			if run.settle(e, settledSkipped, "") {
				w.dispatchReady(ctx, run, logger, &g, e.to)
			}
			continue
		}

		from, to := run.topo.names[e.from], run.topo.names[e.to]

		pass, err := evalCondition(e.flow.Condition, o.Output)
		if err == nil && !pass {
			logger.Debug("edge condition false", slog.String("from", from), slog.String("to", to))
		}
		next := o.Output
		if err == nil && pass {
			next, err = evalTransform(e.flow.Transform, next)
		}
		if err != nil {
			logger.Warn("edge callback failed",
				slog.String("from", from),
				slog.String("to", to),
				slog.String("error", err.Error()),
			)
		}

		kind := settledFired
		if err != nil || !pass {
			kind, next = settledSkipped, ""
		}
		if run.settle(e, kind, next) {
			w.dispatchReady(ctx, run, logger, &g, e.to)
		}
	}

	_ = g.Wait()
}

// evalCondition runs cond, converting a panic into an error. A nil cond
// always passes.
func evalCondition(cond func(string) bool, output string) (pass bool, err error) {
	if cond == nil {
		return true, nil
	}
	defer func() {
		if r := recover(); r != nil {
			pass, err = false, fmt.Errorf("condition panic: %v", r)
		}
	}()
	return cond(output), nil
}

// evalTransform runs transform, converting a panic into an error.
func evalTransform(transform func(string) string, output string) (out string, err error) {
	if transform == nil {
		return output, nil
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("transform panic: %v", r)
		}
	}()
	return transform(output), nil
}

// dispatchReady handles a node whose incoming edges have all settled.
// Start nodes are only ever dispatched by their start branch. A node with
// no fired incoming edge is skipped, and the skip cascades along its own
// outgoing edges so that downstream joins do not wait on it.
func (w *Workflow) dispatchReady(ctx context.Context, run *runState, logger *slog.Logger, g *errgroup.Group, idx int) {
	if run.starts[idx] {
		return
	}

	input, ok := run.takeInputs(idx)
	if !ok {
		logger.Debug("node skipped", slog.String("node", run.topo.names[idx]))
		for _, e := range run.topo.out[idx] {
			if run.settle(e, settledSkipped, "") {
				w.dispatchReady(ctx, run, logger, g, e.to)
			}
		}
		return
	}

	g.Go(func() error {
		w.executeNode(ctx, run, logger, idx, input)
		return nil
	})
}

// liveUnit resolves the unit for a snapshot index against the live store.
func (w *Workflow) liveUnit(idx int, name string) (Unit, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	cur, ok := w.byName[name]
	if !ok || cur != idx {
		return nil, false
	}
	u, ok := w.units[name]
	return u, ok
}

func (w *Workflow) setLast(idx int, name string, o Outcome) {
	w.mu.RLock()
	var n *node
	if cur, ok := w.byName[name]; ok && cur == idx {
		n = w.nodes[idx]
	}
	w.mu.RUnlock()

	if n != nil {
		n.setLast(&o)
	}
}

func (w *Workflow) notify(ctx context.Context, logger *slog.Logger, summary RunSummary) {
	ctx = context.WithoutCancel(ctx)
	for _, o := range w.observers {
		if err := o.ObserveRun(ctx, summary); err != nil {
			logger.Warn("run observer failed", slog.String("error", err.Error()))
		}
	}
}

// callUnit runs u and returns as soon as either u finishes or ctx ends. A
// unit that ignores ctx keeps running in the background until it returns.
// Panics inside Run are converted to errors.
func callUnit(ctx context.Context, u Unit, input string) (string, error) {
	ch := make(chan unitReply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- unitReply{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		out, err := u.Run(ctx, input)
		ch <- unitReply{out: out, err: err}
	}()

	select {
	case r := <-ch:
		return r.out, r.err
	case <-ctx.Done():
		return replyOr(ch, ctx.Err())
	}
}

type unitReply struct {
	out string
	err error
}

// replyOr returns a reply already waiting on ch, and ctxErr otherwise. A
// unit that finished as its deadline fired keeps its result.
func replyOr(ch <-chan unitReply, ctxErr error) (string, error) {
	select {
	case r := <-ch:
		return r.out, r.err
	default:
		return "", ctxErr
	}
}
