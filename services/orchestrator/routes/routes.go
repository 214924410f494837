// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/autofinlabs/autofinance/services/orchestrator/controller"
	"github.com/autofinlabs/autofinance/services/orchestrator/handlers"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(router *gin.Engine, ctrl *controller.Controller) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/turn", handlers.HandleTurn(ctrl))
		v1.GET("/applications/:requestId/status", handlers.GetApplicationStatus(ctrl))

		// Session administration routes
		sessions := v1.Group("/sessions")
		{
			sessions.GET("", handlers.ListSessions(ctrl))
			sessions.GET("/:sessionId", handlers.GetSession(ctrl))
			sessions.GET("/:sessionId/applications", handlers.GetSessionApplications(ctrl))
			sessions.DELETE("/:sessionId", handlers.DeleteSession(ctrl))
		}
	}
}
