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
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

// --- Register Tests ---

func TestWorkflow_NewCarriesNameAndDescription(t *testing.T) {
	w := New("review", "draft then critique")
	if w.Name() != "review" {
		t.Errorf("Name() = %q, want %q", w.Name(), "review")
	}
	if w.Description() != "draft then critique" {
		t.Errorf("Description() = %q", w.Description())
	}
	if w.NodeTimeout() != DefaultNodeTimeout {
		t.Errorf("NodeTimeout() = %v, want %v", w.NodeTimeout(), DefaultNodeTimeout)
	}
}

func TestWorkflow_Register(t *testing.T) {
	w := newTestWorkflow()

	if err := w.Register(newTestUnit("a", "a")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !w.Has("a") {
		t.Fatal("expected node a to exist")
	}
	if w.Len() != 1 {
		t.Errorf("Len() = %d, want 1", w.Len())
	}
	if _, ok := w.LastResult("a"); ok {
		t.Error("new node should have no last result")
	}
}

func TestWorkflow_Register_Nil(t *testing.T) {
	w := newTestWorkflow()
	if err := w.Register(nil); !errors.Is(err, ErrNilUnit) {
		t.Errorf("expected ErrNilUnit, got %v", err)
	}
}

func TestWorkflow_Register_ReplacesHandleKeepsEdges(t *testing.T) {
	w := newTestWorkflow()
	mustRegister(w, newTestUnit("a", "old"), newTestUnit("b", "b"), newTestUnit("c", "c"))
	mustConnect(w, "a", "b", Flow{})

	mustRegister(w, newTestUnit("a", "new"))

	if got := w.Nodes(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Nodes() = %v, want [a b c]", got)
	}
	conns := w.Structure()["a"]
	if len(conns) != 1 || conns[0].Target != "b" {
		t.Errorf("edges lost on re-register: %+v", conns)
	}

	out, err := w.ExecuteUnit(context.Background(), "a", "x")
	if err != nil {
		t.Fatalf("ExecuteUnit: %v", err)
	}
	if out != "new" {
		t.Errorf("ExecuteUnit() = %q, want the replaced unit's output", out)
	}
}

// --- Connect Tests ---

func TestWorkflow_Connect(t *testing.T) {
	w := newTestWorkflow()
	mustRegister(w, newTestUnit("a", "a"), newTestUnit("b", "b"), newTestUnit("c", "c"))

	first, err := w.Connect("a", "b", Flow{})
	if err != nil {
		t.Fatalf("Connect a->b: %v", err)
	}
	second, err := w.Connect("b", "c", Flow{})
	if err != nil {
		t.Fatalf("Connect b->c: %v", err)
	}
	if second <= first {
		t.Errorf("edge ids should increase: %d then %d", first, second)
	}
}

func TestWorkflow_Connect_UnknownNode(t *testing.T) {
	w := newTestWorkflow()
	mustRegister(w, newTestUnit("a", "a"))

	_, err := w.Connect("a", "missing", Flow{})
	if !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected *NotFoundError, got %T", err)
	}
	if nf.Name != "missing" || nf.Role != "target" {
		t.Errorf("NotFoundError = %+v", nf)
	}

	_, err = w.Connect("missing", "a", Flow{})
	if !errors.As(err, &nf) || nf.Role != "source" {
		t.Errorf("expected source NotFoundError, got %v", err)
	}
}

func TestWorkflow_Connect_CycleDetection(t *testing.T) {
	w := newTestWorkflow()
	mustRegister(w, newTestUnit("a", "a"), newTestUnit("b", "b"), newTestUnit("c", "c"))
	mustConnect(w, "a", "b", Flow{})
	mustConnect(w, "b", "c", Flow{})

	before := w.Structure()

	_, err := w.Connect("c", "a", Flow{})
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if len(cycleErr.Path) != 4 || cycleErr.Path[0] != cycleErr.Path[3] {
		t.Errorf("unexpected cycle path %v", cycleErr.Path)
	}

	if after := w.Structure(); !reflect.DeepEqual(before, after) {
		t.Errorf("rejected edge left the store changed:\nbefore %v\nafter  %v", before, after)
	}

	// The edge after a rejection gets the next free id.
	id, err := w.Connect("a", "c", Flow{})
	if err != nil {
		t.Fatalf("Connect a->c: %v", err)
	}
	if id != 2 {
		t.Errorf("edge id = %d, want 2", id)
	}
}

func TestWorkflow_Connect_SelfLoop(t *testing.T) {
	w := newTestWorkflow()
	mustRegister(w, newTestUnit("a", "a"))

	if _, err := w.Connect("a", "a", Flow{}); !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
	if conns := w.Structure()["a"]; len(conns) != 0 {
		t.Errorf("self loop remained: %+v", conns)
	}
}

// --- Disconnect Tests ---

func TestWorkflow_Disconnect(t *testing.T) {
	w := newTestWorkflow()
	mustRegister(w, newTestUnit("a", "a"), newTestUnit("b", "b"))
	mustConnect(w, "a", "b", Flow{})

	if err := w.Disconnect("a", "b"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if conns := w.Structure()["a"]; len(conns) != 0 {
		t.Errorf("edge still present: %+v", conns)
	}

	err := w.Disconnect("a", "b")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Role != "edge" {
		t.Errorf("expected edge NotFoundError, got %v", err)
	}
}

func TestWorkflow_Disconnect_UnknownNode(t *testing.T) {
	w := newTestWorkflow()
	mustRegister(w, newTestUnit("a", "a"))

	if err := w.Disconnect("a", "nope"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
	if err := w.Disconnect("nope", "a"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestWorkflow_Disconnect_RemovesFirstOfParallelEdges(t *testing.T) {
	w := newTestWorkflow()
	mustRegister(w, newTestUnit("a", "a"), newTestUnit("b", "b"))
	mustConnect(w, "a", "b", Flow{})
	mustConnect(w, "a", "b", Flow{Transform: strings.ToUpper})

	if err := w.Disconnect("a", "b"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	conns := w.Structure()["a"]
	if len(conns) != 1 {
		t.Fatalf("expected one remaining edge, got %+v", conns)
	}
	if !conns[0].Transformed {
		t.Error("expected the second (transformed) edge to remain")
	}
}

// --- RemoveNode Tests ---

func TestWorkflow_RemoveNode(t *testing.T) {
	w := newTestWorkflow()
	mustRegister(w, newTestUnit("a", "a"), newTestUnit("b", "b"), newTestUnit("c", "c"))
	mustConnect(w, "a", "b", Flow{})
	mustConnect(w, "b", "c", Flow{})

	if err := w.RemoveNode("b"); err != nil {
		t.Fatalf("RemoveNode: %v", err)
	}

	if w.Has("b") {
		t.Error("b still present")
	}
	if _, ok := w.Unit("b"); ok {
		t.Error("b's unit still registered")
	}

	structure := w.Structure()
	if _, ok := structure["b"]; ok {
		t.Error("structure still lists b")
	}
	for src, conns := range structure {
		for _, c := range conns {
			if c.Target == "b" {
				t.Errorf("%s still points at b", src)
			}
		}
	}

	if err := w.RemoveNode("b"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("second RemoveNode: expected ErrNodeNotFound, got %v", err)
	}
}

func TestWorkflow_RemoveNode_ReRegisterAppends(t *testing.T) {
	w := newTestWorkflow()
	mustRegister(w, newTestUnit("a", "a"), newTestUnit("b", "b"))

	if err := w.RemoveNode("a"); err != nil {
		t.Fatalf("RemoveNode: %v", err)
	}
	mustRegister(w, newTestUnit("a", "a"))

	if got := w.Nodes(); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("Nodes() = %v, want [b a]", got)
	}
}

// --- Structure Tests ---

func TestWorkflow_Structure(t *testing.T) {
	w := newTestWorkflow()
	mustRegister(w, newTestUnit("a", "a"), newTestUnit("b", "b"), newTestUnit("c", "c"))
	mustConnect(w, "a", "b", Flow{})
	mustConnect(w, "b", "c", Flow{
		Transform: func(s string) string { return "transformed: " + s },
		Condition: func(s string) bool { return true },
	})

	structure := w.Structure()
	if len(structure) != 3 {
		t.Fatalf("len(structure) = %d, want 3", len(structure))
	}

	want := map[string][]Connection{
		"a": {{Target: "b"}},
		"b": {{Target: "c", Transformed: true, Conditional: true}},
		"c": {},
	}
	if !reflect.DeepEqual(structure, want) {
		t.Errorf("Structure() = %+v, want %+v", structure, want)
	}
}
