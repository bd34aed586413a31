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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M4n5ter/rigs/services/workflow/dag"
	"github.com/M4n5ter/rigs/services/workflow/history"
	"github.com/M4n5ter/rigs/services/workflow/manifest"
)

const joinOutput = "[From loud] HELLO WORLD" + dag.InputSeparator + "[From quiet] psst: hello world"

// writeConfig writes a config with telemetry off and the given history
// backend, returning its path.
func writeConfig(t *testing.T, historyBackend string) string {
	t.Helper()
	dir := t.TempDir()
	content := "logging:\n  level: error\n" +
		"telemetry:\n  trace_exporter: none\n  metric_exporter: none\n" +
		"history:\n  backend: " + historyBackend + "\n  path: " + filepath.Join(dir, "history") + "\n"
	path := filepath.Join(dir, "rigs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	all := append([]string{"--config", configPath, "--env-file", filepath.Join(t.TempDir(), "none.env")}, args...)
	err := execute(context.Background(), all, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func nodesByName(rec history.Record) map[string]history.NodeRecord {
	out := make(map[string]history.NodeRecord, len(rec.Nodes))
	for _, n := range rec.Nodes {
		out[n.Name] = n
	}
	return out
}

// --- run ---

func TestRun_JSON(t *testing.T) {
	cfg := writeConfig(t, "none")

	stdout, _, err := runCLI(t, cfg, "run", "-f", "testdata/greet.yaml", "--json")
	require.NoError(t, err)

	var rec history.Record
	require.NoError(t, json.Unmarshal([]byte(stdout), &rec))
	assert.Equal(t, "greet", rec.Workflow)
	assert.Equal(t, []string{"hello"}, rec.Starts)
	assert.Equal(t, "world", rec.Input)

	nodes := nodesByName(rec)
	require.Len(t, nodes, 4)
	assert.Equal(t, "hello world", nodes["hello"].Output)
	assert.Equal(t, "HELLO WORLD", nodes["loud"].Output)
	assert.Equal(t, joinOutput, nodes["join"].Output)
}

func TestRun_PlainOutput(t *testing.T) {
	cfg := writeConfig(t, "none")

	stdout, _, err := runCLI(t, cfg, "run", "-f", "testdata/greet.yaml", "--input", "gophers")
	require.NoError(t, err)

	assert.Contains(t, stdout, "run ")
	assert.Contains(t, stdout, "✓ loud\n    HELLO GOPHERS\n")
	assert.NotContains(t, stdout, "\x1b[", "non-terminal output must not carry ANSI codes")
}

func TestRun_InputFromStdin(t *testing.T) {
	cfg := writeConfig(t, "none")

	root, a := newRootCmd()
	var stdout bytes.Buffer
	root.SetArgs([]string{"--config", cfg, "run", "-f", "testdata/greet.yaml", "--input-file", "-", "--json"})
	root.SetIn(strings.NewReader("pipes\n"))
	root.SetOut(&stdout)
	root.SetErr(&bytes.Buffer{})
	require.NoError(t, root.ExecuteContext(context.Background()))
	require.NoError(t, a.teardown(context.Background()))

	var rec history.Record
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rec))
	assert.Equal(t, "pipes", rec.Input)
}

func TestRun_FailedNodeReturnsError(t *testing.T) {
	cfg := writeConfig(t, "none")

	stdout, _, err := runCLI(t, cfg, "run", "-f", "testdata/fail.yaml", "--input", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 node(s) failed")
	assert.Contains(t, stdout, "✓ ok")
	assert.Contains(t, stdout, "✗ broken (unit_error)")
	assert.Contains(t, stdout, "bad")
}

func TestRun_UnknownStart(t *testing.T) {
	cfg := writeConfig(t, "none")

	_, _, err := runCLI(t, cfg, "run", "-f", "testdata/greet.yaml", "--start", "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, dag.ErrNodeNotFound)
}

func TestRun_RequiresFile(t *testing.T) {
	cfg := writeConfig(t, "none")

	_, _, err := runCLI(t, cfg, "run")
	assert.Error(t, err)
}

// --- unit ---

func TestUnit(t *testing.T) {
	cfg := writeConfig(t, "none")

	stdout, _, err := runCLI(t, cfg, "unit", "loud", "-f", "testdata/greet.yaml", "--input", "abc")
	require.NoError(t, err)
	assert.Equal(t, "ABC\n", stdout)

	_, _, err = runCLI(t, cfg, "unit", "ghost", "-f", "testdata/greet.yaml")
	assert.ErrorIs(t, err, dag.ErrNodeNotFound)
}

// --- inspect ---

func TestInspect_Paths(t *testing.T) {
	cfg := writeConfig(t, "none")

	stdout, _, err := runCLI(t, cfg, "inspect", "paths", "-f", "testdata/greet.yaml")
	require.NoError(t, err)
	assert.Equal(t, "hello → loud → join\nhello → quiet → join\n", stdout)
}

func TestInspect_PathsJSON(t *testing.T) {
	cfg := writeConfig(t, "none")

	stdout, _, err := runCLI(t, cfg, "inspect", "paths", "-f", "testdata/greet.yaml", "--start", "quiet", "--json")
	require.NoError(t, err)

	var paths [][]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &paths))
	assert.Equal(t, [][]string{{"quiet", "join"}}, paths)
}

func TestInspect_Structure(t *testing.T) {
	cfg := writeConfig(t, "none")

	stdout, _, err := runCLI(t, cfg, "inspect", "structure", "-f", "testdata/greet.yaml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "hello\n  → loud\n  → quiet\nloud\n"), stdout)
}

func TestInspect_DeadlocksAndGraphviz(t *testing.T) {
	cfg := writeConfig(t, "none")

	stdout, _, err := runCLI(t, cfg, "inspect", "deadlocks", "-f", "testdata/greet.yaml", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", stdout)

	stdout, _, err = runCLI(t, cfg, "inspect", "graphviz", "-f", "testdata/greet.yaml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "digraph {\n"))
	assert.Contains(t, stdout, `"loud" -> "join";`)
}

// --- history ---

func TestHistory_ListAndShow(t *testing.T) {
	cfg := writeConfig(t, "badger")

	stdout, _, err := runCLI(t, cfg, "run", "-f", "testdata/greet.yaml", "--json")
	require.NoError(t, err)
	var ran history.Record
	require.NoError(t, json.Unmarshal([]byte(stdout), &ran))

	stdout, _, err = runCLI(t, cfg, "history", "list", "--json")
	require.NoError(t, err)
	var recs []history.Record
	require.NoError(t, json.Unmarshal([]byte(stdout), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, ran.RunID, recs[0].RunID)

	stdout, _, err = runCLI(t, cfg, "history", "show", ran.RunID)
	require.NoError(t, err)
	assert.Contains(t, stdout, "run "+ran.RunID)
	assert.Contains(t, stdout, "workflow greet")

	_, _, err = runCLI(t, cfg, "history", "show", "missing")
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestHistory_Disabled(t *testing.T) {
	cfg := writeConfig(t, "none")

	_, _, err := runCLI(t, cfg, "history", "list")
	assert.ErrorIs(t, err, errHistoryDisabled)
}

// --- helpers ---

func TestResolveInput(t *testing.T) {
	m := &manifest.Manifest{Input: "default"}

	got, err := resolveInput(strings.NewReader(""), "", "", false, m)
	require.NoError(t, err)
	assert.Equal(t, "default", got)

	got, err = resolveInput(strings.NewReader(""), "", "", true, m)
	require.NoError(t, err)
	assert.Equal(t, "", got, "an explicit empty --input wins over the manifest")

	file := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, os.WriteFile(file, []byte("from file\n"), 0644))
	got, err = resolveInput(strings.NewReader(""), file, "ignored", true, m)
	require.NoError(t, err)
	assert.Equal(t, "from file", got)

	_, err = resolveInput(strings.NewReader(""), filepath.Join(t.TempDir(), "missing"), "", false, m)
	assert.Error(t, err)
}

func TestApplyEngineDefaults(t *testing.T) {
	a := &app{}
	a.cfg.Engine.NodeTimeout = 5e9
	a.cfg.Engine.MaxConcurrency = 3

	m := &manifest.Manifest{MaxConcurrency: 8}
	a.applyEngineDefaults(m)
	assert.Equal(t, a.cfg.Engine.NodeTimeout, m.NodeTimeout)
	assert.Equal(t, int64(8), m.MaxConcurrency)
}
