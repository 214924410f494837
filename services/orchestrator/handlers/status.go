// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/autofinlabs/autofinance/services/orchestrator/controller"
	"github.com/autofinlabs/autofinance/services/orchestrator/ledger"
	"github.com/gin-gonic/gin"
)

// GetApplicationStatus returns the review status of a submitted application.
func GetApplicationStatus(ctrl *controller.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Param("requestId")
		record, err := ctrl.FetchApplicationStatus(c.Request.Context(), requestID)
		if err != nil {
			if errors.Is(err, ledger.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "No application found for that request id"})
				return
			}
			slog.Error("Application status lookup failed", "request_id", requestID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch the application status"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"request_id": record.RequestID,
			"status":     record.Status,
			"created_at": record.CreatedAt,
		})
	}
}
