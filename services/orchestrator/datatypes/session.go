// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SessionState is the complete durable state of one financing conversation.
//
// Invariants maintained by the engine:
//   - RequestID is non-empty if and only if Phase == PhaseCompleted.
//   - PendingRequestID is the write-ahead marker for an attempted submission;
//     it survives a crash between ledger write and final state commit so the
//     same id is reused on retry.
//   - Quote is non-nil only when Policy, SelectedVehicle, MonthlyIncome and
//     EmploymentType are all set.
type SessionState struct {
	SessionID string    `json:"session_id"`
	Phase     Phase     `json:"phase"`
	Messages  []Message `json:"messages"`

	SearchCriteria  *SearchCriteria `json:"search_criteria,omitempty"`
	SearchResults   []Vehicle       `json:"search_results,omitempty"`
	SelectedVehicle *Vehicle        `json:"selected_vehicle,omitempty"`

	MonthlyIncome  *float64       `json:"monthly_income,omitempty"`
	EmploymentType EmploymentType `json:"employment_type,omitempty"`

	Policy *CreditPolicy   `json:"policy,omitempty"`
	Quote  *FinancialQuote `json:"quote,omitempty"`

	Customer         *CustomerInfo `json:"customer,omitempty"`
	PendingRequestID string        `json:"pending_request_id,omitempty"`
	RequestID        string        `json:"request_id,omitempty"`

	PendingGate Gate `json:"pending_gate,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// NewSessionState creates the initial state for a fresh session id.
func NewSessionState(sessionID string) *SessionState {
	now := time.Now().UnixMilli()
	return &SessionState{
		SessionID: sessionID,
		Phase:     PhaseOnboarding,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendMessage appends to the conversation log. The log is append-only;
// nothing else in the engine removes or rewrites entries.
func (s *SessionState) AppendMessage(role, content string) {
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	})
}

// ProfileComplete reports whether both financial profile fields are present.
func (s *SessionState) ProfileComplete() bool {
	return s.MonthlyIncome != nil && s.EmploymentType != ""
}

// Reset clears everything except the session id and conversation log,
// returning the session to onboarding. Used for explicit restarts.
func (s *SessionState) Reset() {
	s.Phase = PhaseOnboarding
	s.SearchCriteria = nil
	s.SearchResults = nil
	s.SelectedVehicle = nil
	s.MonthlyIncome = nil
	s.EmploymentType = ""
	s.Policy = nil
	s.Quote = nil
	s.Customer = nil
	s.PendingRequestID = ""
	s.RequestID = ""
	s.PendingGate = GateNone
	s.UpdatedAt = time.Now().UnixMilli()
}

// DiscardQuote drops the quote and selection after a declined submission,
// keeping the financial profile so the user does not re-enter it.
func (s *SessionState) DiscardQuote() {
	s.SelectedVehicle = nil
	s.SearchResults = nil
	s.SearchCriteria = nil
	s.Policy = nil
	s.Quote = nil
	s.PendingGate = GateNone
	s.Phase = PhaseOnboarding
}

// Clone returns a deep copy. The controller transitions a copy so a failed
// commit never leaves a half-mutated state behind.
func (s *SessionState) Clone() *SessionState {
	cp := *s
	cp.Messages = append([]Message(nil), s.Messages...)
	cp.SearchResults = append([]Vehicle(nil), s.SearchResults...)
	if s.SearchCriteria != nil {
		c := *s.SearchCriteria
		cp.SearchCriteria = &c
	}
	if s.SelectedVehicle != nil {
		v := *s.SelectedVehicle
		cp.SelectedVehicle = &v
	}
	if s.MonthlyIncome != nil {
		m := *s.MonthlyIncome
		cp.MonthlyIncome = &m
	}
	if s.Policy != nil {
		p := *s.Policy
		cp.Policy = &p
	}
	if s.Quote != nil {
		q := *s.Quote
		cp.Quote = &q
	}
	if s.Customer != nil {
		ci := *s.Customer
		cp.Customer = &ci
	}
	return &cp
}
