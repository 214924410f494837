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
	"github.com/autofinlabs/autofinance/services/orchestrator/store"
	"github.com/gin-gonic/gin"
)

// ListSessions returns the ids of all stored conversations.
func ListSessions(ctrl *controller.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := ctrl.ListSessions(c.Request.Context())
		if err != nil {
			slog.Error("Failed to list sessions", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sessions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": ids})
	}
}

// GetSession returns a session's full state, including the conversation log.
func GetSession(ctrl *controller.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		state, err := ctrl.GetSession(c.Request.Context(), sessionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
				return
			}
			slog.Error("Failed to load session", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session"})
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

// GetSessionApplications returns the applications submitted from a session.
func GetSessionApplications(ctrl *controller.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		records, err := ctrl.ListSessionApplications(c.Request.Context(), sessionID)
		if err != nil {
			slog.Error("Failed to list session applications", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list session applications"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"applications": records})
	}
}

// DeleteSession removes a session's stored state.
func DeleteSession(ctrl *controller.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		if err := ctrl.DeleteSession(c.Request.Context(), sessionID); err != nil {
			slog.Error("Failed to delete session", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete session"})
			return
		}
		slog.Info("Deleted session", "session_id", sessionID)
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_session_id": sessionID})
	}
}
