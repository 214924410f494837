// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ledger records submitted financing applications.
//
// The ledger is append-once per request id: Insert with a request id that was
// already written succeeds without creating a second record. That makes the
// submission turn safe to retry after a crash or timeout.
package ledger

import (
	"context"
	"errors"

	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
)

// ErrRecordNotFound is returned by FetchStatus for an unknown request id.
var ErrRecordNotFound = errors.New("application record not found")

// ErrLedgerUnavailable is returned when the backing store cannot be reached.
// Submission turns surface this as a transient failure without advancing the
// session.
var ErrLedgerUnavailable = errors.New("application ledger unavailable")

// Ledger is the durable application record store.
type Ledger interface {
	// Insert writes the record, keyed by record.RequestID. Inserting a
	// request id that already exists is a success and leaves the original
	// record untouched.
	Insert(ctx context.Context, record *datatypes.ApplicationRecord) error

	// FetchStatus returns the stored record for a request id, or
	// ErrRecordNotFound.
	FetchStatus(ctx context.Context, requestID string) (*datatypes.ApplicationRecord, error)

	// ListBySession returns all records submitted from one session, newest
	// first. An unknown session yields an empty slice.
	ListBySession(ctx context.Context, sessionID string) ([]*datatypes.ApplicationRecord, error)
}
