// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M4n5ter/rigs/services/workflow/dag"
	"github.com/M4n5ter/rigs/services/workflow/storage/badger"
)

func newBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := badger.OpenDB(badger.InMemoryConfig())
	require.NoError(t, err)
	s := NewBadgerStore(db, 0)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(id, workflow string, at time.Time) Record {
	return Record{
		RunID:     id,
		Workflow:  workflow,
		Starts:    []string{"draft"},
		Input:     "topic",
		StartedAt: at,
		Nodes:     []NodeRecord{{Name: "draft", Output: "text", Kind: KindOK}},
	}
}

// --- Record Tests ---

func TestFromSummary(t *testing.T) {
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	summary := dag.RunSummary{
		RunID:     "run-1",
		Workflow:  "review",
		Starts:    []string{"a"},
		Input:     "in",
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
		Results: dag.Results{
			"a": {Output: "ok"},
			"b": {Err: &dag.UnitError{Node: "b", Err: errors.New("bad")}},
			"c": {Err: &dag.TimeoutError{Node: "c", After: time.Second}},
			"d": {Err: fmt.Errorf("node %q: %w", "d", dag.ErrCanceled)},
			"e": {Err: &dag.ExecutionError{Node: "e", Reason: "gone"}},
		},
	}

	rec := FromSummary(summary)

	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, int64(1500), rec.DurationMS)
	assert.Equal(t, time.UTC, rec.StartedAt.Location())
	require.Len(t, rec.Nodes, 5)

	kinds := map[string]string{}
	for _, n := range rec.Nodes {
		kinds[n.Name] = n.Kind
	}
	assert.Equal(t, map[string]string{
		"a": KindOK,
		"b": KindUnit,
		"c": KindTimeout,
		"d": KindCanceled,
		"e": KindExecution,
	}, kinds)

	assert.Equal(t, "a", rec.Nodes[0].Name, "nodes are sorted by name")
	assert.Empty(t, rec.Nodes[0].Error)
	assert.Contains(t, rec.Nodes[1].Error, "bad")
	assert.Equal(t, 4, rec.Failed())
}

func TestEncodeDecode(t *testing.T) {
	rec := record("r1", "review", time.Unix(1700000000, 0).UTC())

	data, err := encode(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id":"r1"`)

	got, err := decode(data)
	require.NoError(t, err)
	assert.Equal(t, rec.RunID, got.RunID)
	assert.True(t, rec.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, rec.Nodes, got.Nodes)

	_, err = decode([]byte("{not json"))
	assert.Error(t, err)
}

// --- BadgerStore Tests ---

func TestBadgerStore_SaveGet(t *testing.T) {
	s := newBadgerStore(t)
	ctx := context.Background()

	rec := record("r1", "review", time.Now())
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "review", got.Workflow)
	assert.Equal(t, rec.Nodes, got.Nodes)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStore_ListNewestFirst(t *testing.T) {
	s := newBadgerStore(t)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, s.Save(ctx, record("old", "review", base)))
	require.NoError(t, s.Save(ctx, record("other", "deploy", base.Add(time.Second))))
	require.NoError(t, s.Save(ctx, record("new", "review", base.Add(2*time.Second))))

	all, err := s.List(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "other", "old"}, ids(all))

	review, err := s.List(ctx, "review", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, ids(review))

	limited, err := s.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, ids(limited))

	none, err := s.List(ctx, "unknown", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBadgerStore_WorkflowNamesDoNotCollide(t *testing.T) {
	s := newBadgerStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, record("r1", "a", time.Now())))
	require.NoError(t, s.Save(ctx, record("r2", "a/b", time.Now())))

	got, err := s.List(ctx, "a", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids(got))
}

func TestBadgerStore_Closed(t *testing.T) {
	db, err := badger.OpenDB(badger.InMemoryConfig())
	require.NoError(t, err)
	s := NewBadgerStore(db, 0)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Save(context.Background(), record("r", "w", time.Now())), ErrClosed)
	_, err = s.Get(context.Background(), "r")
	assert.ErrorIs(t, err, ErrClosed)
}

// --- Recorder Tests ---

func TestRecorder_SavesWorkflowRuns(t *testing.T) {
	s := newBadgerStore(t)
	w := dag.New("review", "", dag.WithRunObserver(NewRecorder(s, nil)))
	require.NoError(t, w.Register(dag.NewFuncUnit("draft", "", func(ctx context.Context, in string) (string, error) {
		return "draft of " + in, nil
	})))
	require.NoError(t, w.Register(dag.NewFuncUnit("critique", "", func(ctx context.Context, in string) (string, error) {
		return "", errors.New("too harsh")
	})))
	_, err := w.Connect("draft", "critique", dag.Flow{})
	require.NoError(t, err)

	summary, err := w.Run(context.Background(), []string{"draft"}, "go")
	require.NoError(t, err)

	rec, err := s.Get(context.Background(), summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, "review", rec.Workflow)
	assert.Equal(t, "go", rec.Input)
	require.Len(t, rec.Nodes, 2)
	assert.Equal(t, KindUnit, rec.Nodes[0].Kind)
	assert.Equal(t, "critique", rec.Nodes[0].Name)
	assert.Equal(t, "draft of go", rec.Nodes[1].Output)
}

// --- Open Tests ---

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, Config{Backend: BackendNone}, nil)
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = Open(ctx, Config{Backend: BackendBadger, Path: t.TempDir()}, nil)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.NoError(t, store.Close())

	_, err = Open(ctx, Config{Backend: "sqlite"}, nil)
	assert.Error(t, err)

	_, err = Open(ctx, Config{Backend: BackendRedis}, nil)
	assert.Error(t, err, "redis requires a URL")
}

func ids(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.RunID
	}
	return out
}
