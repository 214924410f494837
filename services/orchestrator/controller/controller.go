// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package controller orchestrates one conversation turn end to end: load
// state, classify intent, step the engine, execute the requested side
// effect, and commit the new state.
//
// Persistence uses optimistic concurrency. Each turn commits with the
// version it loaded; a conflicting writer forces one full retry from a fresh
// load, and a second conflict is surfaced as a transient error. Submission
// turns additionally write the pending request id ahead of the ledger
// insert, so a crash in between is recovered with the same id and the
// insert stays idempotent.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
	"github.com/autofinlabs/autofinance/services/orchestrator/engine"
	"github.com/autofinlabs/autofinance/services/orchestrator/intent"
	"github.com/autofinlabs/autofinance/services/orchestrator/ledger"
	"github.com/autofinlabs/autofinance/services/orchestrator/observability"
	"github.com/autofinlabs/autofinance/services/orchestrator/store"
	"github.com/autofinlabs/autofinance/services/orchestrator/tools"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("autofin.controller")

// ErrTurnConflict is returned when two concurrent turns for the same session
// keep colliding. The caller should ask the user to resend.
var ErrTurnConflict = errors.New("session is busy, please retry")

// Controller wires the engine to its stores and tools.
type Controller struct {
	store      store.StateStore
	ledger     ledger.Ledger
	searcher   tools.MarketSearcher
	policies   tools.PolicySource
	classifier intent.Classifier
	engine     *engine.Engine

	locks sync.Map // session id -> *sync.Mutex
}

func New(st store.StateStore, lg ledger.Ledger, searcher tools.MarketSearcher,
	policies tools.PolicySource, classifier intent.Classifier, eng *engine.Engine) *Controller {

	return &Controller{
		store:      st,
		ledger:     lg,
		searcher:   searcher,
		policies:   policies,
		classifier: classifier,
		engine:     eng,
	}
}

// TurnResult is what a handled turn returns to the transport layer.
type TurnResult struct {
	SessionID string          `json:"session_id"`
	Reply     string          `json:"reply"`
	Phase     datatypes.Phase `json:"phase"`
	RequestID string          `json:"request_id,omitempty"`
}

// HandleTurn processes one user message for a session.
func (c *Controller) HandleTurn(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	ctx, span := tracer.Start(ctx, "Controller.HandleTurn")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID))

	start := time.Now()
	defer func() {
		observability.TurnDuration.Observe(time.Since(start).Seconds())
	}()

	// Serialize turns per session in-process. The versioned store still
	// protects against other replicas.
	lock := c.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	result, err := c.attemptTurn(ctx, sessionID, text)
	if errors.Is(err, store.ErrVersionConflict) {
		observability.VersionConflictsTotal.Inc()
		slog.Warn("Turn hit a version conflict, retrying once", "session_id", sessionID)
		result, err = c.attemptTurn(ctx, sessionID, text)
		if errors.Is(err, store.ErrVersionConflict) {
			observability.VersionConflictsTotal.Inc()
			return nil, ErrTurnConflict
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	observability.TurnsTotal.WithLabelValues(string(result.Phase)).Inc()
	return result, nil
}

func (c *Controller) attemptTurn(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	state, version, err := c.loadOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state.AppendMessage(datatypes.RoleUser, text)
	resolved := c.classifier.Classify(ctx, text, state.Phase, state.PendingGate)
	slog.Info("Turn classified",
		"session_id", sessionID, "phase", state.Phase, "intent", resolved)

	decision := c.engine.Step(state, resolved, text)
	reply := decision.Reply

	if decision.Effect != nil {
		if decision.Effect.Kind == engine.EffectSubmit {
			reply, version, err = c.runSubmission(ctx, state, version, decision.Effect)
			if err != nil {
				return nil, err
			}
		} else {
			result := c.executeEffect(ctx, decision.Effect)
			reply = c.engine.ApplyResult(state, decision.Effect, result)
		}
	}

	state.AppendMessage(datatypes.RoleAssistant, reply)
	if err := c.store.CompareAndSave(ctx, sessionID, version, state); err != nil {
		return nil, err
	}

	return &TurnResult{
		SessionID: sessionID,
		Reply:     reply,
		Phase:     state.Phase,
		RequestID: state.RequestID,
	}, nil
}

func (c *Controller) loadOrCreate(ctx context.Context, sessionID string) (*datatypes.SessionState, int64, error) {
	versioned, err := c.store.Load(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return datatypes.NewSessionState(sessionID), 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load session state: %w", err)
	}
	return versioned.State.Clone(), versioned.Version, nil
}

// runSubmission commits the pending request id before touching the ledger.
// The sequence is save(pending) -> insert -> apply. A crash after the insert
// leaves the pending id on disk; the user's next confirmation replays the
// insert with the same id, which the ledger treats as already done.
func (c *Controller) runSubmission(ctx context.Context, state *datatypes.SessionState,
	version int64, effect *engine.Effect) (string, int64, error) {

	ctx, span := tracer.Start(ctx, "Controller.runSubmission")
	defer span.End()
	span.SetAttributes(attribute.String("request_id", effect.Record.RequestID))

	if err := c.store.CompareAndSave(ctx, state.SessionID, version, state); err != nil {
		return "", 0, err
	}
	version++

	insertErr := c.ledger.Insert(ctx, effect.Record)
	c.recordToolCall(engine.EffectSubmit, insertErr)
	if insertErr == nil {
		observability.SubmissionsTotal.Inc()
	}

	reply := c.engine.ApplyResult(state, effect, engine.EffectResult{Err: insertErr})
	return reply, version, nil
}

func (c *Controller) executeEffect(ctx context.Context, effect *engine.Effect) engine.EffectResult {
	var result engine.EffectResult
	switch effect.Kind {
	case engine.EffectSearch:
		result.Vehicles, result.Err = c.searcher.Search(ctx, effect.Criteria)
	case engine.EffectPolicyLookup:
		result.Policy, result.Err = c.policies.Lookup(ctx, effect.Profile,
			effect.VehicleAgeYears, effect.VehiclePrice)
	case engine.EffectStatusFetch:
		result.Record, result.Err = c.ledger.FetchStatus(ctx, effect.RequestID)
	default:
		result.Err = fmt.Errorf("unknown effect kind %q", effect.Kind)
	}
	c.recordToolCall(effect.Kind, result.Err)
	return result
}

func (c *Controller) recordToolCall(kind engine.EffectKind, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.ToolCallsTotal.WithLabelValues(string(kind), outcome).Inc()
}

func (c *Controller) sessionLock(sessionID string) *sync.Mutex {
	actual, _ := c.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// GetSession returns the stored state for admin inspection.
func (c *Controller) GetSession(ctx context.Context, sessionID string) (*datatypes.SessionState, error) {
	versioned, err := c.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return versioned.State, nil
}

// ListSessions returns all stored session ids.
func (c *Controller) ListSessions(ctx context.Context) ([]string, error) {
	return c.store.ListSessionIDs(ctx)
}

// DeleteSession removes a session's stored state.
func (c *Controller) DeleteSession(ctx context.Context, sessionID string) error {
	return c.store.Delete(ctx, sessionID)
}

// FetchApplicationStatus looks up a submitted application by request id.
func (c *Controller) FetchApplicationStatus(ctx context.Context, requestID string) (*datatypes.ApplicationRecord, error) {
	return c.ledger.FetchStatus(ctx, requestID)
}

// ListSessionApplications returns the applications submitted from a session.
func (c *Controller) ListSessionApplications(ctx context.Context, sessionID string) ([]*datatypes.ApplicationRecord, error) {
	return c.ledger.ListBySession(ctx, sessionID)
}
