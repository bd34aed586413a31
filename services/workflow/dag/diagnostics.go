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
)

// FindExecutionPaths enumerates every path from each start node to a leaf.
//
// Description:
//
//	Exhaustive depth-first search over the structure only; conditions and
//	transforms are ignored and nothing is executed. A leaf is a node with
//	no outgoing edges. Paths are grouped by start, in the order the starts
//	were given, and follow edge order within a start.
//
// Outputs:
//
//	[][]string - One slice of node names per path.
//	error - *NotFoundError for an unknown start.
func (w *Workflow) FindExecutionPaths(starts []string) ([][]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	idxs := make([]int, 0, len(starts))
	for _, name := range starts {
		idx, ok := w.byName[name]
		if !ok {
			return nil, notFound("start", name)
		}
		idxs = append(idxs, idx)
	}

	adj := w.adjacencyLocked()
	var paths [][]string
	var current []string

	var dfs func(idx int)
	dfs = func(idx int) {
		current = append(current, w.nodes[idx].name)
		if len(adj[idx]) == 0 {
			paths = append(paths, append([]string(nil), current...))
		} else {
			for _, next := range adj[idx] {
				dfs(next)
			}
		}
		current = current[:len(current)-1]
	}

	for _, idx := range idxs {
		current = current[:0]
		dfs(idx)
	}
	return paths, nil
}

// DetectPotentialDeadlocks reports groups of nodes that wait on each other.
//
// Description:
//
//	Builds the dependency graph from the live edges and returns every
//	strongly connected component with more than one node, largest first,
//	each listed in registration order. Connect rejects cycles, so a
//	workflow built through this package always yields an empty result.
//
// Thread Safety: Safe for concurrent use.
func (w *Workflow) DetectPotentialDeadlocks() [][]string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	live := make([]bool, len(w.nodes))
	for idx, n := range w.nodes {
		live[idx] = n != nil
	}

	comps := stronglyConnected(w.adjacencyLocked(), live)
	out := make([][]string, 0, len(comps))
	for _, comp := range comps {
		names := make([]string, len(comp))
		for i, idx := range comp {
			names[i] = w.nodes[idx].name
		}
		out = append(out, names)
	}
	return out
}

// RequireAcyclic returns an error wrapping ErrDeadlock if the deadlock scan
// finds any component.
func (w *Workflow) RequireAcyclic() error {
	if comps := w.DetectPotentialDeadlocks(); len(comps) > 0 {
		return fmt.Errorf("%w: %v", ErrDeadlock, comps)
	}
	return nil
}

// stronglyConnected runs an iterative Tarjan over adj and returns the
// components with more than one node. Each component is sorted by index;
// components are ordered largest first, then by smallest index.
func stronglyConnected(adj [][]int, live []bool) [][]int {
	const unvisited = -1

	n := len(adj)
	index := 0
	nodeIndex := make([]int, n)
	lowLink := make([]int, n)
	onStack := make([]bool, n)
	for i := range nodeIndex {
		nodeIndex[i] = unvisited
	}
	var stack []int
	var comps [][]int

	type callFrame struct {
		node      int
		edgeIndex int
		phase     int // 0=init, 1=edges, 2=post-child, 3=finalize
		child     int
	}

	strongConnect := func(start int) {
		callStack := []callFrame{{node: start}}

		for len(callStack) > 0 {
			frame := &callStack[len(callStack)-1]

			switch frame.phase {
			case 0:
				nodeIndex[frame.node] = index
				lowLink[frame.node] = index
				index++
				stack = append(stack, frame.node)
				onStack[frame.node] = true
				frame.phase = 1

			case 1:
				pushed := false
				for frame.edgeIndex < len(adj[frame.node]) {
					next := adj[frame.node][frame.edgeIndex]
					frame.edgeIndex++

					if nodeIndex[next] == unvisited {
						frame.phase = 2
						frame.child = next
						callStack = append(callStack, callFrame{node: next})
						pushed = true
						break
					} else if onStack[next] && nodeIndex[next] < lowLink[frame.node] {
						lowLink[frame.node] = nodeIndex[next]
					}
				}
				if !pushed {
					frame.phase = 3
				}

			case 2:
				if lowLink[frame.child] < lowLink[frame.node] {
					lowLink[frame.node] = lowLink[frame.child]
				}
				frame.phase = 1

			case 3:
				if lowLink[frame.node] == nodeIndex[frame.node] {
					var comp []int
					for {
						top := stack[len(stack)-1]
						stack = stack[:len(stack)-1]
						onStack[top] = false
						comp = append(comp, top)
						if top == frame.node {
							break
						}
					}
					if len(comp) > 1 {
						sort.Ints(comp)
						comps = append(comps, comp)
					}
				}
				callStack = callStack[:len(callStack)-1]
			}
		}
	}

	for idx := 0; idx < n; idx++ {
		if live[idx] && nodeIndex[idx] == unvisited {
			strongConnect(idx)
		}
	}

	sort.SliceStable(comps, func(i, j int) bool {
		if len(comps[i]) != len(comps[j]) {
			return len(comps[i]) > len(comps[j])
		}
		return comps[i][0] < comps[j][0]
	})
	return comps
}
