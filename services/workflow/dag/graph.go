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
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultNodeTimeout bounds every unit invocation made by ExecuteWorkflow.
const DefaultNodeTimeout = time.Hour

// EdgeID identifies an edge. IDs are never reused within a Workflow.
type EdgeID int

// Flow holds an edge's optional condition and transform.
//
// A nil Condition always fires. A nil Transform forwards the source output
// unchanged. Both must be pure.
type Flow struct {
	Transform func(output string) string
	Condition func(output string) bool
}

// Connection describes one outgoing edge in a structure snapshot.
type Connection struct {
	Target      string `json:"target"`
	Transformed bool   `json:"transformed"`
	Conditional bool   `json:"conditional"`
}

// Outcome is the terminal result of one node in one run.
type Outcome struct {
	Output string
	Err    error
}

// OK reports whether the node succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Results maps node names to their outcome for a single run. Nodes that
// were never reached are absent.
type Results map[string]Outcome

type node struct {
	name string

	mu   sync.Mutex
	last *Outcome
}

func (n *node) setLast(o *Outcome) {
	n.mu.Lock()
	n.last = o
	n.mu.Unlock()
}

func (n *node) getLast() (Outcome, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last == nil {
		return Outcome{}, false
	}
	return *n.last, true
}

type edge struct {
	id   EdgeID
	from int
	to   int
	flow Flow
}

// Workflow is a mutable DAG of named units.
//
// Description:
//
//	Nodes live in an arena addressed by stable integer indices; removed
//	nodes leave a nil slot and indices are never reused, so index order is
//	registration order. Edges live in a second arena and reference their
//	endpoints by index. Every successful mutation leaves the graph acyclic.
//
// Thread Safety:
//
//	Safe for concurrent use. Mutations take the write lock. Runs take a
//	topology snapshot under the read lock and resolve units live, so
//	mutating a workflow during a run is safe but may surface as an
//	ExecutionError for nodes removed mid-run.
type Workflow struct {
	name        string
	description string

	mu     sync.RWMutex
	nodes  []*node
	edges  []*edge
	byName map[string]int
	units  map[string]Unit

	logger      *slog.Logger
	nodeTimeout time.Duration
	sem         *semaphore.Weighted
	observers   []RunObserver
	metrics     *engineMetrics
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithNodeTimeout bounds each unit invocation during ExecuteWorkflow.
// Non-positive values keep DefaultNodeTimeout.
func WithNodeTimeout(d time.Duration) Option {
	return func(w *Workflow) {
		if d > 0 {
			w.nodeTimeout = d
		}
	}
}

// WithMaxConcurrency caps the number of units running at once across all
// runs of the workflow. Zero or negative means unbounded.
func WithMaxConcurrency(n int64) Option {
	return func(w *Workflow) {
		if n > 0 {
			w.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithRunObserver registers an observer notified after every run.
func WithRunObserver(o RunObserver) Option {
	return func(w *Workflow) {
		if o != nil {
			w.observers = append(w.observers, o)
		}
	}
}

// New creates an empty workflow.
//
// Example:
//
//	wf := dag.New("review", "draft, critique, revise",
//	    dag.WithNodeTimeout(5*time.Minute),
//	    dag.WithLogger(logger.Slog()),
//	)
func New(name, description string, opts ...Option) *Workflow {
	w := &Workflow{
		name:        name,
		description: description,
		byName:      make(map[string]int),
		units:       make(map[string]Unit),
		logger:      slog.Default(),
		nodeTimeout: DefaultNodeTimeout,
		metrics:     &engineMetrics{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the workflow name.
func (w *Workflow) Name() string { return w.name }

// Description returns the workflow description.
func (w *Workflow) Description() string { return w.description }

// NodeTimeout returns the per-unit bound used by ExecuteWorkflow.
func (w *Workflow) NodeTimeout() time.Duration { return w.nodeTimeout }

// Register adds a unit under its reported name.
//
// Description:
//
//	A new name creates a node with no edges and an empty last result.
//	An existing name only swaps the unit handle; the node keeps its index,
//	its edges and its last result.
//
// Outputs:
//
//	error - ErrNilUnit if u is nil.
func (w *Workflow) Register(u Unit) error {
	if u == nil {
		return ErrNilUnit
	}
	name := u.Name()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.units[name] = u
	w.ensureNodeLocked(name)
	return nil
}

// Connect adds an edge from -> to carrying flow.
//
// Description:
//
//	Both names must be registered. The edge is inserted and the full cycle
//	check re-run; an edge that closes a cycle is removed again before the
//	lock is released, so a rejected edge is never observable.
//
// Outputs:
//
//	EdgeID - Handle of the new edge.
//	error - *NotFoundError or *CycleError.
func (w *Workflow) Connect(from, to string, flow Flow) (EdgeID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.units[from]; !ok {
		return 0, notFound("source", from)
	}
	if _, ok := w.units[to]; !ok {
		return 0, notFound("target", to)
	}

	fromIdx := w.ensureNodeLocked(from)
	toIdx := w.ensureNodeLocked(to)

	id := EdgeID(len(w.edges))
	w.edges = append(w.edges, &edge{id: id, from: fromIdx, to: toIdx, flow: flow})

	if path := w.findCycleLocked(); path != nil {
		w.edges = w.edges[:len(w.edges)-1]
		w.logger.Debug("edge rejected",
			slog.String("workflow", w.name),
			slog.String("from", from),
			slog.String("to", to),
			slog.Any("cycle", path),
		)
		return 0, &CycleError{Path: path}
	}

	return id, nil
}

// Disconnect removes the first edge from -> to.
func (w *Workflow) Disconnect(from, to string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	fromIdx, ok := w.byName[from]
	if !ok {
		return notFound("source", from)
	}
	toIdx, ok := w.byName[to]
	if !ok {
		return notFound("target", to)
	}

	for i, e := range w.edges {
		if e != nil && e.from == fromIdx && e.to == toIdx {
			w.edges[i] = nil
			return nil
		}
	}
	return &NotFoundError{Name: from + " -> " + to, Role: "edge"}
}

// RemoveNode removes a node, all of its incident edges and its unit.
func (w *Workflow) RemoveNode(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx, ok := w.byName[name]
	if !ok {
		return notFound("node", name)
	}

	for i, e := range w.edges {
		if e != nil && (e.from == idx || e.to == idx) {
			w.edges[i] = nil
		}
	}
	w.nodes[idx] = nil
	delete(w.byName, name)
	delete(w.units, name)
	return nil
}

// Has reports whether a node exists.
func (w *Workflow) Has(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.byName[name]
	return ok
}

// Len returns the number of live nodes.
func (w *Workflow) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.byName)
}

// Nodes returns node names in registration order.
func (w *Workflow) Nodes() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	names := make([]string, 0, len(w.byName))
	for _, n := range w.nodes {
		if n != nil {
			names = append(names, n.name)
		}
	}
	return names
}

// Unit returns the unit registered under name.
func (w *Workflow) Unit(name string) (Unit, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	u, ok := w.units[name]
	return u, ok
}

// LastResult returns the node's outcome from the most recent run. The
// second value is false if the node does not exist or was not reached.
func (w *Workflow) LastResult(name string) (Outcome, bool) {
	w.mu.RLock()
	idx, ok := w.byName[name]
	var n *node
	if ok {
		n = w.nodes[idx]
	}
	w.mu.RUnlock()

	if n == nil {
		return Outcome{}, false
	}
	return n.getLast()
}

// Structure returns every node's outgoing connections in edge order.
func (w *Workflow) Structure() map[string][]Connection {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make(map[string][]Connection, len(w.byName))
	for _, n := range w.nodes {
		if n != nil {
			out[n.name] = []Connection{}
		}
	}
	for _, e := range w.edges {
		if e == nil {
			continue
		}
		src := w.nodes[e.from].name
		out[src] = append(out[src], Connection{
			Target:      w.nodes[e.to].name,
			Transformed: e.flow.Transform != nil,
			Conditional: e.flow.Condition != nil,
		})
	}
	return out
}

// ensureNodeLocked returns the index for name, creating the node if the
// name has no slot yet. Caller must hold the write lock.
func (w *Workflow) ensureNodeLocked(name string) int {
	if idx, ok := w.byName[name]; ok {
		return idx
	}
	idx := len(w.nodes)
	w.nodes = append(w.nodes, &node{name: name})
	w.byName[name] = idx
	return idx
}

// outgoingLocked returns the live edges leaving idx in id order.
func (w *Workflow) outgoingLocked(idx int) []*edge {
	var out []*edge
	for _, e := range w.edges {
		if e != nil && e.from == idx {
			out = append(out, e)
		}
	}
	return out
}
