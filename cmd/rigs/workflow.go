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
	"os"
	"strings"

	"github.com/M4n5ter/rigs/services/workflow/dag"
	"github.com/M4n5ter/rigs/services/workflow/history"
	"github.com/M4n5ter/rigs/services/workflow/manifest"
	"github.com/M4n5ter/rigs/services/workflow/units"
)

var errHistoryDisabled = errors.New("run history is disabled (set history.backend in the config)")

// loadManifest reads path and fills engine settings the manifest leaves
// unset from the config.
func (a *app) loadManifest(path string) (*manifest.Manifest, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	a.applyEngineDefaults(m)
	return m, nil
}

func (a *app) applyEngineDefaults(m *manifest.Manifest) {
	if m.NodeTimeout == 0 {
		m.NodeTimeout = a.cfg.Engine.NodeTimeout
	}
	if m.MaxConcurrency == 0 {
		m.MaxConcurrency = a.cfg.Engine.MaxConcurrency
	}
}

// buildWorkflow assembles m. When store is non-nil every run is recorded.
func (a *app) buildWorkflow(m *manifest.Manifest, store history.Store) (*dag.Workflow, error) {
	factory := &units.Factory{Chat: a.cfg.Chat.Units(), Logger: a.slog()}

	var opts []dag.Option
	if store != nil {
		opts = append(opts, dag.WithRunObserver(history.NewRecorder(store, a.slog())))
	}
	return manifest.Build(m, factory, a.slog(), opts...)
}

// openHistory returns nil, nil when history is disabled.
func (a *app) openHistory(ctx context.Context) (history.Store, error) {
	return history.Open(ctx, a.cfg.History.Store(), a.slog())
}

// resolveInput picks the run input: --input-file ("-" is stdin), then
// --input, then the manifest's default.
func resolveInput(stdin io.Reader, inputFile, input string, inputSet bool, m *manifest.Manifest) (string, error) {
	switch {
	case inputFile == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	case inputFile != "":
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return "", fmt.Errorf("read input file: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	case inputSet:
		return input, nil
	default:
		return m.Input, nil
	}
}

func startsOr(flagStarts []string, m *manifest.Manifest) []string {
	if len(flagStarts) > 0 {
		return flagStarts
	}
	return m.Start
}
