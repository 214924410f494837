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
	"testing"

	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(requestID string) *datatypes.ApplicationRecord {
	return &datatypes.ApplicationRecord{
		RequestID: requestID,
		SessionID: "sess-1",
		Customer: datatypes.CustomerInfo{
			FullName: "Omar Hassan",
			Email:    "omar@example.com",
			Phone:    "01012345678",
		},
		Vehicle: datatypes.Vehicle{Make: "Hyundai", Model: "Tucson", Year: 2022, Price: 1250000},
		Quote: datatypes.FinancialQuote{
			Principal: 1250000, AnnualInterestRate: 0.18, TenureMonths: 60,
			MonthlyInstallment: 31742.42,
		},
		MonthlyIncome:  40000,
		EmploymentType: datatypes.EmploymentSalaried,
		Status:         datatypes.StatusPendingReview,
		CreatedAt:      1724572800000,
	}
}

func TestMemoryLedger_InsertIdempotent(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	record := sampleRecord("req-1")

	require.NoError(t, l.Insert(ctx, record))

	// A retried submission reuses the request id; no second record appears.
	modified := sampleRecord("req-1")
	modified.Vehicle.Price = 999
	require.NoError(t, l.Insert(ctx, modified))

	assert.Equal(t, 1, l.InsertCount)
	got, err := l.FetchStatus(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, 1250000.0, got.Vehicle.Price)
}

func TestMemoryLedger_FetchStatus(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	_, err := l.FetchStatus(ctx, "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	require.NoError(t, l.Insert(ctx, sampleRecord("req-1")))

	got, err := l.FetchStatus(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusPendingReview, got.Status)

	l.SetStatus("req-1", datatypes.StatusApproved)
	got, err = l.FetchStatus(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusApproved, got.Status)
}

func TestMemoryLedger_ListBySession(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	first := sampleRecord("req-1")
	first.CreatedAt = 100
	second := sampleRecord("req-2")
	second.CreatedAt = 200
	other := sampleRecord("req-3")
	other.SessionID = "sess-other"
	require.NoError(t, l.Insert(ctx, first))
	require.NoError(t, l.Insert(ctx, second))
	require.NoError(t, l.Insert(ctx, other))

	records, err := l.ListBySession(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "req-2", records[0].RequestID, "newest first")
	assert.Equal(t, "req-1", records[1].RequestID)

	records, err = l.ListBySession(ctx, "sess-unknown")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWeaviateLedger_NilClient(t *testing.T) {
	l := NewWeaviateLedger(nil)
	ctx := context.Background()

	err := l.Insert(ctx, sampleRecord("req-1"))
	assert.ErrorIs(t, err, ErrLedgerUnavailable)

	_, err = l.FetchStatus(ctx, "req-1")
	assert.ErrorIs(t, err, ErrLedgerUnavailable)

	_, err = l.ListBySession(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrLedgerUnavailable)
}
