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
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/M4n5ter/rigs/cmd/rigs/config"
	"github.com/M4n5ter/rigs/pkg/logging"
	"github.com/M4n5ter/rigs/services/workflow/telemetry"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// app carries what PersistentPreRunE sets up for the subcommands.
type app struct {
	configPath string
	logLevel   string
	logJSON    bool
	envFiles   []string

	cfg      config.Config
	logger   *logging.Logger
	shutdown func(context.Context) error
}

func (a *app) slog() *slog.Logger { return a.logger.Slog() }

// execute runs the CLI with args. Telemetry and the log file are flushed
// even when the command fails.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root, a := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.teardown(ctx))
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "rigs",
		Short: "Run concurrent workflows of units joined by conditional edges",
		Long: `rigs executes workflow manifests: named units (templates, commands,
chat completions) connected into a directed acyclic graph. Independent
branches run concurrently and join nodes wait for every predecessor.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.rigs/rigs.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	flags.BoolVar(&a.logJSON, "log-json", false, "write console logs as JSON")
	flags.StringArrayVar(&a.envFiles, "env-file", nil, "dotenv file to load (default .env)")

	root.AddCommand(
		newRunCmd(a),
		newUnitCmd(a),
		newInspectCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
		newHistoryCmd(a),
	)
	return root, a
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(a.envFiles...); err != nil {
		return err
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	levelName := cfg.Logging.Level
	if a.logLevel != "" {
		levelName = a.logLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "rigs",
		JSON:    a.logJSON || cfg.Logging.JSON,
		Output:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(a.logger.Slog())

	shutdown, err := telemetry.Init(cmd.Context(), cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	var errs []error
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	return errors.Join(errs...)
}
