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
	"go.opentelemetry.io/otel/attribute"

	"github.com/M4n5ter/rigs/services/workflow/history"
	"github.com/M4n5ter/rigs/services/workflow/telemetry"
)

type runOptions struct {
	file      string
	starts    []string
	input     string
	inputFile string
	json      bool
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run -f workflow.yaml",
		Short: "Execute a workflow once and print every node's outcome",
		Example: `  rigs run -f review.yaml --input "goroutines"
  rigs run -f review.yaml --start draft --start outline --input-file topic.txt
  echo "topic" | rigs run -f review.yaml --input-file - --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWorkflow(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "workflow manifest")
	f.StringArrayVar(&opts.starts, "start", nil, "start node (repeatable; default: the manifest's start list)")
	f.StringVarP(&opts.input, "input", "i", "", "input passed to every start node")
	f.StringVar(&opts.inputFile, "input-file", "", "read the input from a file, or - for stdin")
	f.BoolVar(&opts.json, "json", false, "print the run record as JSON")
	_ = cmd.MarkFlagRequired("file")
	cmd.MarkFlagsMutuallyExclusive("input", "input-file")

	return cmd
}

func (a *app) runWorkflow(cmd *cobra.Command, opts *runOptions) (err error) {
	ctx, span := telemetry.StartSpan(cmd.Context(), "rigs.cli", "cli.run",
		attribute.String("manifest", opts.file),
	)
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetSpanOK(span)
		}
		span.End()
	}()

	m, err := a.loadManifest(opts.file)
	if err != nil {
		return err
	}
	input, err := resolveInput(cmd.InOrStdin(), opts.inputFile, opts.input, cmd.Flags().Changed("input"), m)
	if err != nil {
		return err
	}

	store, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	wf, err := a.buildWorkflow(m, store)
	if err != nil {
		return err
	}

	summary, err := wf.Run(ctx, startsOr(opts.starts, m), input)
	if err != nil {
		return err
	}

	rec := history.FromSummary(*summary)
	if err := newPrinter(cmd.OutOrStdout(), opts.json).Record(rec); err != nil {
		return err
	}
	if failed := rec.Failed(); failed > 0 {
		return fmt.Errorf("%d node(s) failed", failed)
	}
	return nil
}
