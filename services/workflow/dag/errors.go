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
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the dag package.
var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilUnit is returned when registering a nil unit.
	ErrNilUnit = errors.New("unit must not be nil")

	// ErrNodeNotFound is returned when a referenced node doesn't exist.
	ErrNodeNotFound = errors.New("node not found")

	// ErrCycleDetected is returned when an edge would close a cycle.
	ErrCycleDetected = errors.New("cycle detected in workflow")

	// ErrUnitFailed is returned when a unit's Run returns an error.
	ErrUnitFailed = errors.New("unit execution failed")

	// ErrTimeout is returned when a unit exceeds the node timeout.
	ErrTimeout = errors.New("unit execution timed out")

	// ErrExecution is returned for structural failures during traversal.
	ErrExecution = errors.New("workflow execution error")

	// ErrDeadlock is returned when the dependency graph contains a cycle.
	ErrDeadlock = errors.New("deadlock detected in workflow")

	// ErrCanceled is returned when the caller's context ends a run.
	ErrCanceled = errors.New("workflow execution canceled")
)

// NotFoundError names the missing node and the role it was looked up in
// ("node", "source", "target", "start", "edge").
type NotFoundError struct {
	Name string
	Role string
}

func (e *NotFoundError) Error() string {
	if e.Role == "" || e.Role == "node" {
		return fmt.Sprintf("node %q not found", e.Name)
	}
	return fmt.Sprintf("%s node %q not found", e.Role, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNodeNotFound
}

func notFound(role, name string) error {
	return &NotFoundError{Name: name, Role: role}
}

// CycleError provides details about a rejected edge.
type CycleError struct {
	// Path lists the nodes on the cycle, first node repeated at the end.
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %v", e.Path)
}

func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

// UnitError wraps a unit's own failure with the node that produced it.
//
// Both errors.Is(err, ErrUnitFailed) and errors.As on the unit's
// underlying error type succeed.
type UnitError struct {
	Node string
	Err  error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unit %q: %v", e.Node, e.Err)
}

func (e *UnitError) Unwrap() []error {
	return []error{ErrUnitFailed, e.Err}
}

// TimeoutError reports a unit that did not finish within the node timeout.
type TimeoutError struct {
	Node  string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("node %q timed out after %s", e.Node, e.After)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// ExecutionError reports a failure of the traversal itself rather than
// of a unit, e.g. a node removed while a run was in flight.
type ExecutionError struct {
	Node   string
	Reason string
}

func (e *ExecutionError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("execution error: %s", e.Reason)
	}
	return fmt.Sprintf("execution error at node %q: %s", e.Node, e.Reason)
}

func (e *ExecutionError) Unwrap() error {
	return ErrExecution
}

func canceled(node string, cause error) error {
	if node == "" {
		return fmt.Errorf("%w: %w", ErrCanceled, cause)
	}
	return fmt.Errorf("node %q: %w: %w", node, ErrCanceled, cause)
}
