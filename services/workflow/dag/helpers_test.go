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
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// testUnit is a configurable unit that records every input it receives.
type testUnit struct {
	name   string
	output string
	err    error
	delay  time.Duration
	// ignoreCtx makes the unit sleep through cancellation.
	ignoreCtx bool

	calls  atomic.Int32
	mu     sync.Mutex
	inputs []string
}

func newTestUnit(name, output string) *testUnit {
	return &testUnit{name: name, output: output}
}

func (u *testUnit) WithError(err error) *testUnit {
	u.err = err
	return u
}

func (u *testUnit) WithDelay(d time.Duration) *testUnit {
	u.delay = d
	return u
}

func (u *testUnit) IgnoringContext() *testUnit {
	u.ignoreCtx = true
	return u
}

func (u *testUnit) Name() string        { return u.name }
func (u *testUnit) Description() string { return "test unit " + u.name }

func (u *testUnit) Run(ctx context.Context, input string) (string, error) {
	u.calls.Add(1)
	u.mu.Lock()
	u.inputs = append(u.inputs, input)
	u.mu.Unlock()

	if u.delay > 0 {
		if u.ignoreCtx {
			time.Sleep(u.delay)
		} else {
			select {
			case <-time.After(u.delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	if u.err != nil {
		return "", u.err
	}
	return u.output, nil
}

func (u *testUnit) Calls() int { return int(u.calls.Load()) }

func (u *testUnit) Inputs() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.inputs...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorkflow(opts ...Option) *Workflow {
	return New("test", "test workflow", append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func mustRegister(w *Workflow, units ...Unit) {
	for _, u := range units {
		if err := w.Register(u); err != nil {
			panic(err)
		}
	}
}

func mustConnect(w *Workflow, from, to string, flow Flow) {
	if _, err := w.Connect(from, to, flow); err != nil {
		panic(err)
	}
}
