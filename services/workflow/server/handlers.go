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
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/M4n5ter/rigs/services/workflow/dag"
	"github.com/M4n5ter/rigs/services/workflow/history"
	"github.com/M4n5ter/rigs/services/workflow/telemetry"
)

// HandleHealth handles GET /v1/health.
func (s *Server) HandleHealth(c *gin.Context) {
	wf := s.Workflow()
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Workflow: wf.Name(),
		Nodes:    wf.Len(),
		History:  s.store != nil,
	})
}

// HandleWorkflow handles GET /v1/workflow.
func (s *Server) HandleWorkflow(c *gin.Context) {
	wf := s.Workflow()
	c.JSON(http.StatusOK, WorkflowResponse{
		Name:        wf.Name(),
		Description: wf.Description(),
		Nodes:       wf.Nodes(),
		Structure:   wf.Structure(),
	})
}

// HandleGraphviz handles GET /v1/workflow/graphviz.
func (s *Server) HandleGraphviz(c *gin.Context) {
	c.Data(http.StatusOK, "text/vnd.graphviz; charset=utf-8", []byte(s.Workflow().ExportGraphviz()))
}

// HandlePaths handles GET /v1/workflow/paths.
//
// Query Parameters:
//
//	start - Repeated start node names. Required.
func (s *Server) HandlePaths(c *gin.Context) {
	starts := c.QueryArray("start")
	if len(starts) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "at least one start is required", Code: "INVALID_REQUEST"})
		return
	}

	paths, err := s.Workflow().FindExecutionPaths(starts)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if paths == nil {
		paths = [][]string{}
	}
	c.JSON(http.StatusOK, PathsResponse{Start: starts, Paths: paths})
}

// HandleDeadlocks handles GET /v1/workflow/deadlocks.
func (s *Server) HandleDeadlocks(c *gin.Context) {
	c.JSON(http.StatusOK, DeadlocksResponse{Components: s.Workflow().DetectPotentialDeadlocks()})
}

// HandleRun handles POST /v1/workflow/run.
//
// Description:
//
//	Runs the workflow from the requested starts and returns the run
//	record. Node failures are part of a 200 response; only start
//	validation errors map to error statuses.
func (s *Server) HandleRun(c *gin.Context) {
	logger := s.requestLogger(c, "HandleRun")

	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	summary, err := s.Workflow().Run(c.Request.Context(), req.Start, req.Input)
	if err != nil {
		logger.Warn("run rejected", slog.String("error", err.Error()))
		s.writeError(c, err)
		return
	}

	rec := history.FromSummary(*summary)
	logger.Info("run completed",
		slog.String("run_id", rec.RunID),
		slog.Int("nodes", len(rec.Nodes)),
		slog.Int("failed", rec.Failed()),
	)
	c.JSON(http.StatusOK, rec)
}

// HandleUnitRun handles POST /v1/units/:name/run.
func (s *Server) HandleUnitRun(c *gin.Context) {
	name := c.Param("name")
	logger := s.requestLogger(c, "HandleUnitRun").With(slog.String("unit", name))

	var req UnitRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	start := time.Now()
	out, err := s.Workflow().ExecuteUnit(c.Request.Context(), name, req.Input)
	if err != nil {
		logger.Warn("unit failed", slog.String("error", err.Error()))
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, UnitRunResponse{
		Unit:       name,
		Output:     out,
		DurationMS: time.Since(start).Milliseconds(),
	})
}

// HandleListRuns handles GET /v1/runs.
//
// Query Parameters:
//
//	limit - Maximum records, newest first. Default 20.
//	workflow - Filter by workflow name. Default: all.
func (s *Server) HandleListRuns(c *gin.Context) {
	if s.store == nil {
		s.historyDisabled(c)
		return
	}

	limit := history.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be between 1 and 1000", Code: "INVALID_REQUEST"})
			return
		}
		limit = n
	}

	runs, err := s.store.List(c.Request.Context(), c.Query("workflow"), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if runs == nil {
		runs = []history.Record{}
	}
	c.JSON(http.StatusOK, RunsResponse{Runs: runs})
}

// HandleGetRun handles GET /v1/runs/:id.
func (s *Server) HandleGetRun(c *gin.Context) {
	if s.store == nil {
		s.historyDisabled(c)
		return
	}

	rec, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) historyDisabled(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "run history is disabled", Code: "HISTORY_DISABLED"})
}

// writeError maps engine and store errors to HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, dag.ErrNodeNotFound), errors.Is(err, history.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, dag.ErrCycleDetected), errors.Is(err, dag.ErrDeadlock):
		status, code = http.StatusConflict, "CYCLE"
	case errors.Is(err, dag.ErrTimeout):
		status, code = http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, dag.ErrCanceled):
		status, code = http.StatusServiceUnavailable, "CANCELED"
	case errors.Is(err, dag.ErrUnitFailed):
		status, code = http.StatusBadGateway, "UNIT_FAILED"
	}

	if status == http.StatusInternalServerError {
		telemetry.LoggerWithTrace(c.Request.Context(), s.logger).Error("request failed", slog.String("error", err.Error()))
	}
	c.JSON(status, ErrorResponse{
		Error:   err.Error(),
		Code:    code,
		TraceID: telemetry.TraceID(c.Request.Context()),
	})
}

func (s *Server) requestLogger(c *gin.Context, handler string) *slog.Logger {
	return telemetry.LoggerWithTrace(c.Request.Context(), s.logger).With(
		slog.String("request_id", getOrCreateRequestID(c)),
		slog.String("handler", handler),
	)
}

func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDKey, requestID)
	c.Header("X-Request-ID", requestID)
	return requestID
}
