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
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/M4n5ter/rigs/services/workflow/manifest"
	"github.com/M4n5ter/rigs/services/workflow/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		file   string
		addr   string
		reload bool
	)

	cmd := &cobra.Command{
		Use:   "serve -f workflow.yaml",
		Short: "Serve a workflow over HTTP",
		Long: `Serve exposes the workflow's run, unit and inspection endpoints under
/v1 and Prometheus metrics under /metrics. With --reload the manifest is
watched and the served workflow is replaced whenever it changes and still
builds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := a.slog()

			m, err := a.loadManifest(file)
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

			cfg := a.cfg.Server.Server()
			if addr != "" {
				cfg.Addr = addr
			}
			gin.SetMode(gin.ReleaseMode)
			srv := server.New(cfg, wf, store, logger)

			if reload {
				w, err := manifest.NewWatcher(file, manifest.DefaultDebounce, logger)
				if err != nil {
					return err
				}
				go func() {
					_ = w.Run(ctx, func(next *manifest.Manifest, err error) {
						if err != nil {
							logger.Warn("manifest reload failed", slog.String("error", err.Error()))
							return
						}
						a.applyEngineDefaults(next)
						rebuilt, err := a.buildWorkflow(next, store)
						if err != nil {
							logger.Warn("manifest rebuild failed", slog.String("error", err.Error()))
							return
						}
						srv.SetWorkflow(rebuilt)
					})
				}()
			}

			return srv.ListenAndServe(ctx)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "workflow manifest")
	f.StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	f.BoolVar(&reload, "reload", false, "replace the workflow when the manifest changes")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
