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

// adjacencyLocked builds index-based adjacency over live edges, in edge id
// order. Caller must hold the lock.
func (w *Workflow) adjacencyLocked() [][]int {
	adj := make([][]int, len(w.nodes))
	for _, e := range w.edges {
		if e != nil {
			adj[e.from] = append(adj[e.from], e.to)
		}
	}
	return adj
}

// findCycleLocked runs a full depth-first search from every live node and
// returns the first cycle found as a name path (first node repeated at the
// end), or nil if the graph is acyclic. Caller must hold the lock.
func (w *Workflow) findCycleLocked() []string {
	adj := w.adjacencyLocked()
	visited := make([]bool, len(w.nodes))
	onStack := make([]bool, len(w.nodes))
	path := make([]int, 0, len(w.nodes))

	var cycle []int
	var dfs func(idx int) bool
	dfs = func(idx int) bool {
		visited[idx] = true
		onStack[idx] = true
		path = append(path, idx)

		for _, next := range adj[idx] {
			if !visited[next] {
				if dfs(next) {
					return true
				}
			} else if onStack[next] {
				for i, p := range path {
					if p == next {
						cycle = append(append([]int{}, path[i:]...), next)
						break
					}
				}
				return true
			}
		}

		path = path[:len(path)-1]
		onStack[idx] = false
		return false
	}

	for idx, n := range w.nodes {
		if n != nil && !visited[idx] && dfs(idx) {
			break
		}
	}
	if cycle == nil {
		return nil
	}

	names := make([]string, len(cycle))
	for i, idx := range cycle {
		names[i] = w.nodes[idx].name
	}
	return names
}
