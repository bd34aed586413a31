// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes a workflow over HTTP.
//
// Endpoints live under /v1:
//
//	GET  /v1/health               - Liveness and loaded workflow
//	GET  /v1/workflow             - Name, description, nodes and structure
//	GET  /v1/workflow/graphviz    - DOT export
//	GET  /v1/workflow/paths       - Start-to-leaf paths (?start=a&start=b)
//	GET  /v1/workflow/deadlocks   - Strongly connected components
//	POST /v1/workflow/run         - Execute the workflow
//	POST /v1/units/:name/run      - Execute one unit
//	GET  /v1/runs                 - Recent runs (?limit=&workflow=)
//	GET  /v1/runs/:id             - One recorded run
//
// GET /metrics serves Prometheus metrics when the exporter is installed.
// The run endpoints share one token-bucket limiter and answer 429 when it
// is exhausted.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/M4n5ter/rigs/services/workflow/dag"
	"github.com/M4n5ter/rigs/services/workflow/history"
	"github.com/M4n5ter/rigs/services/workflow/telemetry"
)

// Config configures the HTTP server.
type Config struct {
	Addr string

	// RateLimit is the sustained run requests per second. Zero or less
	// disables limiting.
	RateLimit float64
	Burst     int

	// ShutdownTimeout bounds graceful shutdown in ListenAndServe.
	ShutdownTimeout time.Duration

	// Debug switches gin to debug mode. Callers otherwise choose the mode
	// with gin.SetMode before New.
	Debug bool
}

// DefaultConfig listens on :8080 with 10 runs/s and a burst of 20.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		RateLimit:       10,
		Burst:           20,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server serves one workflow. The workflow can be swapped at runtime with
// SetWorkflow; in-flight requests keep the one they started with.
type Server struct {
	cfg     Config
	wf      atomic.Pointer[dag.Workflow]
	store   history.Store
	logger  *slog.Logger
	limiter *rate.Limiter
	engine  *gin.Engine
}

// New builds the router. store may be nil, in which case the /v1/runs
// endpoints answer 501.
func New(cfg Config, wf *dag.Workflow, store history.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	s := &Server{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		limiter: rate.NewLimiter(limit, burst),
	}
	s.wf.Store(wf)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("rigs"))
	router.Use(requestLogger(logger))

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	RegisterRoutes(router.Group("/v1"), s)
	s.engine = router
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.engine }

// Workflow returns the workflow currently served.
func (s *Server) Workflow() *dag.Workflow { return s.wf.Load() }

// SetWorkflow replaces the served workflow.
func (s *Server) SetWorkflow(wf *dag.Workflow) {
	s.wf.Store(wf)
	s.logger.Info("workflow replaced", slog.String("workflow", wf.Name()))
}

// ListenAndServe serves until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
