// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history persists workflow run summaries.
//
// A Recorder registered with dag.WithRunObserver converts every finished
// run into a Record and saves it to a Store. Two stores exist: BadgerStore
// for a single machine and RedisStore for servers sharing history.
package history

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bytedance/sonic"

	"github.com/M4n5ter/rigs/services/workflow/dag"
)

var (
	// ErrNotFound is returned by Get for an unknown or expired run id.
	ErrNotFound = errors.New("history: run not found")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("history: store closed")
)

// Failure kinds stored in NodeRecord.Kind.
const (
	KindOK        = "ok"
	KindUnit      = "unit_error"
	KindTimeout   = "timeout"
	KindCanceled  = "canceled"
	KindExecution = "execution_error"
)

// NodeRecord is the stored outcome of one node.
type NodeRecord struct {
	Name   string `json:"name"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind"`
}

// Record is one persisted run.
type Record struct {
	RunID      string       `json:"run_id"`
	Workflow   string       `json:"workflow"`
	Starts     []string     `json:"starts"`
	Input      string       `json:"input"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMS int64        `json:"duration_ms"`
	Nodes      []NodeRecord `json:"nodes"`
}

// Failed counts nodes whose Kind is not KindOK.
func (r Record) Failed() int {
	n := 0
	for _, node := range r.Nodes {
		if node.Kind != KindOK {
			n++
		}
	}
	return n
}

// FromSummary flattens a run summary. Nodes are sorted by name so stored
// records are stable.
func FromSummary(s dag.RunSummary) Record {
	rec := Record{
		RunID:      s.RunID,
		Workflow:   s.Workflow,
		Starts:     append([]string(nil), s.Starts...),
		Input:      s.Input,
		StartedAt:  s.StartedAt.UTC(),
		DurationMS: s.Duration.Milliseconds(),
		Nodes:      make([]NodeRecord, 0, len(s.Results)),
	}
	for name, o := range s.Results {
		node := NodeRecord{Name: name, Output: o.Output, Kind: classify(o.Err)}
		if o.Err != nil {
			node.Error = o.Err.Error()
		}
		rec.Nodes = append(rec.Nodes, node)
	}
	sort.Slice(rec.Nodes, func(i, j int) bool { return rec.Nodes[i].Name < rec.Nodes[j].Name })
	return rec
}

func classify(err error) string {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, dag.ErrTimeout):
		return KindTimeout
	case errors.Is(err, dag.ErrCanceled):
		return KindCanceled
	case errors.Is(err, dag.ErrExecution):
		return KindExecution
	default:
		return KindUnit
	}
}

func encode(rec Record) ([]byte, error) {
	data, err := sonic.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode run %s: %w", rec.RunID, err)
	}
	return data, nil
}

func decode(data []byte) (Record, error) {
	var rec Record
	if err := sonic.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode run: %w", err)
	}
	return rec, nil
}
