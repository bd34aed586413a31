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
	"log/slog"

	"github.com/M4n5ter/rigs/services/workflow/dag"
)

// Recorder saves every observed run to a Store.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder returns a dag.RunObserver backed by store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// ObserveRun implements dag.RunObserver.
func (r *Recorder) ObserveRun(ctx context.Context, summary dag.RunSummary) error {
	rec := FromSummary(summary)
	if err := r.store.Save(ctx, rec); err != nil {
		return err
	}
	r.logger.Debug("run recorded",
		slog.String("run_id", rec.RunID),
		slog.String("workflow", rec.Workflow),
		slog.Int("nodes", len(rec.Nodes)),
	)
	return nil
}

var _ dag.RunObserver = (*Recorder)(nil)
