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
	"time"
)

// RunSummary describes one completed ExecuteWorkflow call.
type RunSummary struct {
	RunID     string
	Workflow  string
	Starts    []string
	Input     string
	StartedAt time.Time
	Duration  time.Duration
	Results   Results
}

// RunObserver is notified synchronously after every run that passed start
// validation. Returned errors are logged and otherwise ignored.
type RunObserver interface {
	ObserveRun(ctx context.Context, summary RunSummary) error
}

// RunObserverFunc adapts a function to RunObserver.
type RunObserverFunc func(ctx context.Context, summary RunSummary) error

// ObserveRun implements RunObserver.
func (f RunObserverFunc) ObserveRun(ctx context.Context, summary RunSummary) error {
	return f(ctx, summary)
}
