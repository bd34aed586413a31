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
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/M4n5ter/rigs/services/workflow/history"
	"github.com/M4n5ter/rigs/services/workflow/manifest"
)

func newWatchCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "watch -f workflow.yaml",
		Short: "Run a workflow, then run it again every time the manifest changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := a.slog()

			store, err := a.openHistory(ctx)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			w, err := manifest.NewWatcher(opts.file, manifest.DefaultDebounce, logger)
			if err != nil {
				return err
			}

			// stdin can only be read once; later runs reuse it.
			if opts.inputFile == "-" {
				in, err := resolveInput(cmd.InOrStdin(), "-", "", false, nil)
				if err != nil {
					return err
				}
				opts.inputFile = ""
				if err := cmd.Flags().Set("input", in); err != nil {
					return err
				}
			}

			p := newPrinter(cmd.OutOrStdout(), opts.json)
			once := func(m *manifest.Manifest) {
				if err := a.watchRun(ctx, cmd, p, m, store, opts); err != nil {
					logger.Warn("watch run failed", slog.String("error", err.Error()))
				}
			}

			m, err := a.loadManifest(opts.file)
			if err != nil {
				logger.Warn("initial manifest load failed", slog.String("error", err.Error()))
			} else {
				once(m)
			}

			logger.Info("watching manifest", slog.String("path", w.Path()))
			return w.Run(ctx, func(next *manifest.Manifest, err error) {
				if err != nil {
					logger.Warn("manifest reload failed", slog.String("error", err.Error()))
					return
				}
				a.applyEngineDefaults(next)
				once(next)
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "workflow manifest")
	f.StringArrayVar(&opts.starts, "start", nil, "start node (repeatable; default: the manifest's start list)")
	f.StringVarP(&opts.input, "input", "i", "", "input passed to every start node")
	f.StringVar(&opts.inputFile, "input-file", "", "read the input from a file on every run, or - to read stdin once")
	f.BoolVar(&opts.json, "json", false, "print run records as JSON")
	_ = cmd.MarkFlagRequired("file")
	cmd.MarkFlagsMutuallyExclusive("input", "input-file")

	return cmd
}

func (a *app) watchRun(ctx context.Context, cmd *cobra.Command, p *printer, m *manifest.Manifest, store history.Store, opts *runOptions) error {
	input, err := resolveInput(cmd.InOrStdin(), opts.inputFile, opts.input, cmd.Flags().Changed("input"), m)
	if err != nil {
		return err
	}
	wf, err := a.buildWorkflow(m, store)
	if err != nil {
		return err
	}
	summary, err := wf.Run(ctx, startsOr(opts.starts, m), input)
	if err != nil {
		return err
	}
	return p.Record(history.FromSummary(*summary))
}
