// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/M4n5ter/rigs/services/workflow/dag"
)

// newInspectCmd builds "rigs inspect", which examines a workflow's graph
// without running any unit.
func newInspectCmd(a *app) *cobra.Command {
	var (
		file    string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Examine a workflow's graph without executing it",
	}
	cmd.PersistentFlags().StringVarP(&file, "file", "f", "", "workflow manifest")
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON")
	_ = cmd.MarkPersistentFlagRequired("file")

	load := func() (*dag.Workflow, []string, error) {
		m, err := a.loadManifest(file)
		if err != nil {
			return nil, nil, err
		}
		wf, err := a.buildWorkflow(m, nil)
		if err != nil {
			return nil, nil, err
		}
		return wf, m.Start, nil
	}

	var starts []string
	paths := &cobra.Command{
		Use:   "paths",
		Short: "List every path from the start nodes to a leaf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, defaults, err := load()
			if err != nil {
				return err
			}
			if len(starts) == 0 {
				starts = defaults
			}
			found, err := wf.FindExecutionPaths(starts)
			if err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout(), jsonOut).Paths(found)
		},
	}
	paths.Flags().StringArrayVar(&starts, "start", nil, "start node (repeatable; default: the manifest's start list)")

	deadlocks := &cobra.Command{
		Use:   "deadlocks",
		Short: "Report strongly connected components (potential deadlocks)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, _, err := load()
			if err != nil {
				return err
			}
			components := wf.DetectPotentialDeadlocks()
			if err := newPrinter(cmd.OutOrStdout(), jsonOut).Components(components); err != nil {
				return err
			}
			if len(components) > 0 {
				return fmt.Errorf("%w: %d component(s)", dag.ErrDeadlock, len(components))
			}
			return nil
		},
	}

	structure := &cobra.Command{
		Use:   "structure",
		Short: "Print each node's outgoing edges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, _, err := load()
			if err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout(), jsonOut).Structure(wf.Nodes(), wf.Structure())
		},
	}

	graphviz := &cobra.Command{
		Use:   "graphviz",
		Short: "Print the workflow as a Graphviz DOT digraph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, _, err := load()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), wf.ExportGraphviz())
			return err
		},
	}

	cmd.AddCommand(paths, deadlocks, structure, graphviz)
	return cmd
}
