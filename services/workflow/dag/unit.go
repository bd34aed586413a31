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
)

// Unit is the executable capability a workflow node wraps.
//
// Description:
//
//	The engine only ever calls these three methods. What a unit does with
//	its input (prompting a model, running a command, rendering a template)
//	is opaque to the workflow.
//
// Thread Safety:
//
//	Run may be called concurrently from different runs and from
//	ExecuteUnit. Implementations must be safe for concurrent use.
type Unit interface {
	// Name returns the unique name of the unit. It becomes the node name.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// Run executes the unit.
	//
	// Inputs:
	//   - ctx: Carries the node timeout and the caller's cancellation.
	//   - input: The start input, or the aggregated predecessor outputs.
	//
	// Outputs:
	//   - string: The unit's output.
	//   - error: Non-nil on failure.
	Run(ctx context.Context, input string) (string, error)
}

// RunFunc is the signature of a function-backed unit.
type RunFunc func(ctx context.Context, input string) (string, error)

// FuncUnit is a Unit backed by a function.
type FuncUnit struct {
	name        string
	description string
	fn          RunFunc
}

// NewFuncUnit creates a unit from a function.
//
// Example:
//
//	upper := dag.NewFuncUnit("upper", "uppercases input",
//	    func(ctx context.Context, in string) (string, error) {
//	        return strings.ToUpper(in), nil
//	    })
func NewFuncUnit(name, description string, fn RunFunc) *FuncUnit {
	return &FuncUnit{name: name, description: description, fn: fn}
}

// Name implements Unit.
func (u *FuncUnit) Name() string { return u.name }

// Description implements Unit.
func (u *FuncUnit) Description() string { return u.description }

// Run implements Unit.
func (u *FuncUnit) Run(ctx context.Context, input string) (string, error) {
	if u.fn == nil {
		return input, nil
	}
	return u.fn(ctx, input)
}
