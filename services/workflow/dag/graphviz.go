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
	"strings"
)

// ExportGraphviz renders the workflow as a DOT digraph.
//
// Nodes are listed in registration order, then edges in insertion order:
//
//	digraph {
//	    "a" [label="a"];
//	    "a" -> "b";
//	}
//
// The layout is meant for visualization tools and may change between
// versions.
func (w *Workflow) ExportGraphviz() string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var sb strings.Builder
	sb.WriteString("digraph {\n")

	for _, n := range w.nodes {
		if n == nil {
			continue
		}
		fmt.Fprintf(&sb, "    %s [label=\"%s\"];\n", sanitizeDOTID(n.name), escapeDOTLabel(n.name))
	}

	for _, e := range w.edges {
		if e == nil {
			continue
		}
		fmt.Fprintf(&sb, "    %s -> %s;\n",
			sanitizeDOTID(w.nodes[e.from].name),
			sanitizeDOTID(w.nodes[e.to].name),
		)
	}

	sb.WriteString("}\n")
	return sb.String()
}

func sanitizeDOTID(s string) string {
	return "\"" + escapeDOTLabel(s) + "\""
}

func escapeDOTLabel(s string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"\"", "\\\"",
		"\n", "\\n",
	)
	return replacer.Replace(s)
}
