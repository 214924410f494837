// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
)

// MemoryLedger is an in-process Ledger used in lightweight mode and tests.
// Records do not survive a restart.
type MemoryLedger struct {
	mu      sync.RWMutex
	records map[string]*datatypes.ApplicationRecord

	// InsertCount tracks actual writes (not idempotent replays) for tests.
	InsertCount int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[string]*datatypes.ApplicationRecord)}
}

// Insert implements Ledger. A replayed request id leaves the first record in
// place.
func (m *MemoryLedger) Insert(_ context.Context, record *datatypes.ApplicationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[record.RequestID]; exists {
		return nil
	}
	cp := *record
	m.records[record.RequestID] = &cp
	m.InsertCount++
	return nil
}

// FetchStatus implements Ledger.
func (m *MemoryLedger) FetchStatus(_ context.Context, requestID string) (*datatypes.ApplicationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[requestID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *record
	return &cp, nil
}

// ListBySession implements Ledger.
func (m *MemoryLedger) ListBySession(_ context.Context, sessionID string) ([]*datatypes.ApplicationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []*datatypes.ApplicationRecord
	for _, record := range m.records {
		if record.SessionID == sessionID {
			cp := *record
			records = append(records, &cp)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt > records[j].CreatedAt })
	return records, nil
}

// SetStatus overrides a stored record's status. Test helper standing in for
// back-office review tooling.
func (m *MemoryLedger) SetStatus(requestID string, status datatypes.ApplicationStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.records[requestID]; ok {
		record.Status = status
	}
}

var _ Ledger = (*MemoryLedger)(nil)
