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
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// InputSeparator joins aggregated predecessor inputs at a join node.
const InputSeparator = "\n\n---\n\n"

type settlement uint8

const (
	settledFired settlement = iota + 1
	settledSkipped
)

func (s settlement) String() string {
	switch s {
	case settledFired:
		return "fired"
	case settledSkipped:
		return "skipped"
	default:
		return "unsettled"
	}
}

type pendingInput struct {
	source int
	edge   EdgeID
	input  string
}

// topology is the read-only view of the graph a run traverses. Edges are
// immutable once inserted, so sharing the pointers with the store is safe.
type topology struct {
	names []string
	out   [][]*edge
	in    []int
}

// runState is everything scoped to one ExecuteWorkflow call. It is shared
// by every branch of that run and discarded when the call returns.
type runState struct {
	id     string
	topo   *topology
	starts map[int]bool

	claims singleflight.Group

	// remaining counts unsettled incoming edges per node. The branch that
	// takes a node to zero owns its dispatch.
	remaining []atomic.Int64

	mu      sync.Mutex
	results Results
	settled map[EdgeID]settlement
	pending map[int][]pendingInput
}

func newRunState(id string, topo *topology, starts []int) *runState {
	r := &runState{
		id:        id,
		topo:      topo,
		starts:    make(map[int]bool, len(starts)),
		remaining: make([]atomic.Int64, len(topo.names)),
		results:   make(Results),
		settled:   make(map[EdgeID]settlement),
		pending:   make(map[int][]pendingInput),
	}
	for _, idx := range starts {
		r.starts[idx] = true
	}
	for idx, n := range topo.in {
		r.remaining[idx].Store(int64(n))
	}
	return r
}

func (r *runState) result(name string) (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.results[name]
	return o, ok
}

// record stores the outcome unless one is already present. It returns the
// stored outcome.
func (r *runState) record(name string, o Outcome) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.results[name]; ok {
		return prev
	}
	r.results[name] = o
	return o
}

// settle marks e resolved and reports whether e was the last unsettled
// incoming edge of its target. An edge settles at most once.
func (r *runState) settle(e *edge, kind settlement, input string) bool {
	r.mu.Lock()
	if _, done := r.settled[e.id]; done {
		r.mu.Unlock()
		return false
	}
	r.settled[e.id] = kind
	if kind == settledFired {
		r.pending[e.to] = append(r.pending[e.to], pendingInput{
			source: e.from,
			edge:   e.id,
			input:  input,
		})
	}
	r.mu.Unlock()

	return r.remaining[e.to].Add(-1) == 0
}

// takeInputs consumes the pending inputs of idx and formats them in
// source insertion order. The second value is false when no incoming edge
// fired.
func (r *runState) takeInputs(idx int) (string, bool) {
	r.mu.Lock()
	entries := r.pending[idx]
	delete(r.pending, idx)
	r.mu.Unlock()

	if len(entries) == 0 {
		return "", false
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].source != entries[j].source {
			return entries[i].source < entries[j].source
		}
		return entries[i].edge < entries[j].edge
	})

	parts := make([]string, len(entries))
	for i, p := range entries {
		parts[i] = fmt.Sprintf("[From %s] %s", r.topo.names[p.source], p.input)
	}
	return strings.Join(parts, InputSeparator), true
}

func (r *runState) snapshot() Results {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(Results, len(r.results))
	for k, v := range r.results {
		out[k] = v
	}
	return out
}

// snapshotLocked captures the topology for a run and resolves the start
// indices. Caller must hold at least the read lock.
func (w *Workflow) snapshotLocked(starts []string) (*topology, []int, error) {
	idxs := make([]int, 0, len(starts))
	for _, name := range starts {
		idx, ok := w.byName[name]
		if !ok {
			return nil, nil, notFound("start", name)
		}
		idxs = append(idxs, idx)
	}

	topo := &topology{
		names: make([]string, len(w.nodes)),
		out:   make([][]*edge, len(w.nodes)),
		in:    make([]int, len(w.nodes)),
	}
	for idx, n := range w.nodes {
		if n != nil {
			topo.names[idx] = n.name
		}
	}
	for _, e := range w.edges {
		if e == nil {
			continue
		}
		topo.out[e.from] = append(topo.out[e.from], e)
		topo.in[e.to]++
	}
	return topo, idxs, nil
}
