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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the /v1 endpoints on rg.
func RegisterRoutes(rg *gin.RouterGroup, s *Server) {
	rg.GET("/health", s.HandleHealth)

	wf := rg.Group("/workflow")
	{
		wf.GET("", s.HandleWorkflow)
		wf.GET("/graphviz", s.HandleGraphviz)
		wf.GET("/paths", s.HandlePaths)
		wf.GET("/deadlocks", s.HandleDeadlocks)
		wf.POST("/run", s.rateLimit(), s.HandleRun)
	}

	rg.POST("/units/:name/run", s.rateLimit(), s.HandleUnitRun)

	rg.GET("/runs", s.HandleListRuns)
	rg.GET("/runs/:id", s.HandleGetRun)
}
