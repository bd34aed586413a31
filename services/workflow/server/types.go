// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"github.com/M4n5ter/rigs/services/workflow/dag"
	"github.com/M4n5ter/rigs/services/workflow/history"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	// TraceID links the failure to its trace when tracing is enabled.
	TraceID string `json:"trace_id,omitempty"`
}

// HealthResponse is returned by GET /v1/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Workflow string `json:"workflow"`
	Nodes    int    `json:"nodes"`
	History  bool   `json:"history"`
}

// WorkflowResponse is returned by GET /v1/workflow.
type WorkflowResponse struct {
	Name        string                      `json:"name"`
	Description string                      `json:"description,omitempty"`
	Nodes       []string                    `json:"nodes"`
	Structure   map[string][]dag.Connection `json:"structure"`
}

// PathsResponse is returned by GET /v1/workflow/paths.
type PathsResponse struct {
	Start []string   `json:"start"`
	Paths [][]string `json:"paths"`
}

// DeadlocksResponse is returned by GET /v1/workflow/deadlocks.
type DeadlocksResponse struct {
	Components [][]string `json:"components"`
}

// RunRequest is the body of POST /v1/workflow/run.
type RunRequest struct {
	Start []string `json:"start" binding:"required,min=1,dive,required"`
	Input string   `json:"input"`
}

// RunResponse is the recorded form of the run.
type RunResponse = history.Record

// UnitRunRequest is the body of POST /v1/units/:name/run.
type UnitRunRequest struct {
	Input string `json:"input"`
}

// UnitRunResponse is returned by POST /v1/units/:name/run.
type UnitRunResponse struct {
	Unit       string `json:"unit"`
	Output     string `json:"output"`
	DurationMS int64  `json:"duration_ms"`
}

// RunsResponse is returned by GET /v1/runs.
type RunsResponse struct {
	Runs []history.Record `json:"runs"`
}
