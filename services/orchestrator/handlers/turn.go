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
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TurnRequest is the body of POST /v1/turn. A missing session id starts a
// new conversation; the generated id comes back in the response.
type TurnRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

// HandleTurn processes one conversational turn.
func HandleTurn(ctrl *controller.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TurnRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: message is required"})
			return
		}
		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}

		result, err := ctrl.HandleTurn(c.Request.Context(), req.SessionID, req.Message)
		if err != nil {
			if errors.Is(err, controller.ErrTurnConflict) {
				c.JSON(http.StatusConflict, gin.H{"error": "Session is busy handling another message, please retry"})
				return
			}
			slog.Error("Turn handling failed", "session_id", req.SessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process the message"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
