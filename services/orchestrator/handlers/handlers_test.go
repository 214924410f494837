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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/autofinlabs/autofinance/services/orchestrator/controller"
	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
	"github.com/autofinlabs/autofinance/services/orchestrator/engine"
	"github.com/autofinlabs/autofinance/services/orchestrator/intent"
	"github.com/autofinlabs/autofinance/services/orchestrator/ledger"
	"github.com/autofinlabs/autofinance/services/orchestrator/store"
	"github.com/autofinlabs/autofinance/services/orchestrator/tools"
	policyengine "github.com/autofinlabs/autofinance/services/policy_engine"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, datatypes.SearchCriteria) ([]datatypes.Vehicle, error) {
	return []datatypes.Vehicle{
		{Make: "Hyundai", Model: "Tucson", Year: 2022, Price: 1250000},
	}, nil
}

type stubPolicySource struct{}

func (stubPolicySource) Lookup(context.Context, tools.ApplicantProfile, int, float64) (*datatypes.CreditPolicy, error) {
	return nil, tools.ErrPolicyUnavailable
}

func newTestController(t *testing.T) (*controller.Controller, *ledger.MemoryLedger) {
	t.Helper()
	st, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	grid, err := policyengine.NewPolicyEngine()
	require.NoError(t, err)

	lg := ledger.NewMemoryLedger()
	ctrl := controller.New(st, lg, stubSearcher{}, stubPolicySource{},
		intent.NewRegexClassifier(), engine.New(grid))
	return ctrl, lg
}

func newTestRouter(t *testing.T) (*gin.Engine, *ledger.MemoryLedger) {
	ctrl, lg := newTestController(t)
	router := gin.New()
	router.GET("/health", HealthCheck)
	v1 := router.Group("/v1")
	v1.POST("/turn", HandleTurn(ctrl))
	v1.GET("/applications/:requestId/status", GetApplicationStatus(ctrl))
	v1.GET("/sessions", ListSessions(ctrl))
	v1.GET("/sessions/:sessionId", GetSession(ctrl))
	v1.GET("/sessions/:sessionId/applications", GetSessionApplications(ctrl))
	v1.DELETE("/sessions/:sessionId", DeleteSession(ctrl))
	return router, lg
}

func postTurn(t *testing.T, router *gin.Engine, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/turn", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var response map[string]any
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	}
	return w, response
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
}

func TestHandleTurn(t *testing.T) {
	router, _ := newTestRouter(t)

	t.Run("missing message is rejected", func(t *testing.T) {
		w, _ := postTurn(t, router, `{"session_id": "s1"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing session id gets one generated", func(t *testing.T) {
		w, response := postTurn(t, router, `{"message": "hello"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, response["session_id"])
		assert.NotEmpty(t, response["reply"])
	})

	t.Run("session id is stable across turns", func(t *testing.T) {
		_, first := postTurn(t, router, `{"session_id": "sess-http", "message": "hyundai tucson 2022"}`)
		assert.Equal(t, "sess-http", first["session_id"])
		assert.Equal(t, string(datatypes.PhaseAwaitingSearchConfirmation), first["phase"])

		_, second := postTurn(t, router, `{"session_id": "sess-http", "message": "yes"}`)
		assert.Equal(t, string(datatypes.PhaseAwaitingSelection), second["phase"])
	})
}

func TestGetApplicationStatus(t *testing.T) {
	router, lg := newTestRouter(t)

	t.Run("unknown request id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/v1/applications/req-unknown/status", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("known request id", func(t *testing.T) {
		require.NoError(t, lg.Insert(context.Background(), &datatypes.ApplicationRecord{
			RequestID: "req-1",
			Status:    datatypes.StatusUnderReview,
		}))

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/v1/applications/req-1/status", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var response map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "under_review", response["status"])
	})
}

func TestSessionAdminEndpoints(t *testing.T) {
	router, lg := newTestRouter(t)
	postTurn(t, router, `{"session_id": "sess-admin", "message": "hello"}`)

	t.Run("list", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/v1/sessions", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var response map[string][]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Contains(t, response["sessions"], "sess-admin")
	})

	t.Run("get", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/v1/sessions/sess-admin", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var state datatypes.SessionState
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
		assert.Equal(t, "sess-admin", state.SessionID)
		assert.Len(t, state.Messages, 2)
	})

	t.Run("applications", func(t *testing.T) {
		require.NoError(t, lg.Insert(context.Background(), &datatypes.ApplicationRecord{
			RequestID: "req-admin-1",
			SessionID: "sess-admin",
			Status:    datatypes.StatusPendingReview,
		}))

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/v1/sessions/sess-admin/applications", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var response map[string][]datatypes.ApplicationRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response["applications"], 1)
		assert.Equal(t, "req-admin-1", response["applications"][0].RequestID)
	})

	t.Run("delete then get is 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/v1/sessions/sess-admin", nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		req, _ = http.NewRequest("GET", "/v1/sessions/sess-admin", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
