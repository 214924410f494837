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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("autofin.ledger")

// WeaviateLedger stores application records as Application objects. The
// object UUID is the request id itself, so a second Insert for the same
// request id collides server-side and is treated as success.
type WeaviateLedger struct {
	client *weaviate.Client
}

func NewWeaviateLedger(client *weaviate.Client) *WeaviateLedger {
	return &WeaviateLedger{client: client}
}

// Insert implements Ledger.
func (l *WeaviateLedger) Insert(ctx context.Context, record *datatypes.ApplicationRecord) error {
	ctx, span := tracer.Start(ctx, "WeaviateLedger.Insert")
	defer span.End()
	span.SetAttributes(
		attribute.String("request_id", record.RequestID),
		attribute.String("session_id", record.SessionID),
	)

	if l.client == nil {
		return fmt.Errorf("%w: no Weaviate client configured", ErrLedgerUnavailable)
	}
	if record.RequestID == "" {
		return errors.New("record has no request id")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal the application record: %w", err)
	}

	_, err = l.client.Data().Creator().
		WithClassName("Application").
		WithID(record.RequestID).
		WithProperties(map[string]interface{}{
			"request_id": record.RequestID,
			"session_id": record.SessionID,
			"payload":    string(payload),
			"status":     string(record.Status),
			"created_at": record.CreatedAt,
		}).
		Do(ctx)
	if err != nil {
		if isAlreadyExists(err) {
			slog.Info("Application already recorded, treating insert as success",
				"request_id", record.RequestID)
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Ledger insert failed", "request_id", record.RequestID, "error", err)
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	slog.Info("Application recorded", "request_id", record.RequestID, "session_id", record.SessionID)
	return nil
}

// FetchStatus implements Ledger. The status property is read from the object
// rather than the payload snapshot, because back-office tooling updates the
// property in place as the review progresses.
func (l *WeaviateLedger) FetchStatus(ctx context.Context, requestID string) (*datatypes.ApplicationRecord, error) {
	ctx, span := tracer.Start(ctx, "WeaviateLedger.FetchStatus")
	defer span.End()
	span.SetAttributes(attribute.String("request_id", requestID))

	if l.client == nil {
		return nil, fmt.Errorf("%w: no Weaviate client configured", ErrLedgerUnavailable)
	}

	objects, err := l.client.Data().ObjectsGetter().
		WithClassName("Application").
		WithID(requestID).
		Do(ctx)
	if err != nil {
		var clientErr *fault.WeaviateClientError
		if errors.As(err, &clientErr) && clientErr.StatusCode == http.StatusNotFound {
			return nil, ErrRecordNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	if len(objects) == 0 {
		return nil, ErrRecordNotFound
	}

	props, ok := objects[0].Properties.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected properties type for request %s", requestID)
	}

	var record datatypes.ApplicationRecord
	if payload, ok := props["payload"].(string); ok && payload != "" {
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			return nil, fmt.Errorf("failed to parse the application payload: %w", err)
		}
	}
	record.RequestID = requestID
	if status, ok := props["status"].(string); ok && status != "" {
		record.Status = datatypes.ApplicationStatus(status)
	}
	return &record, nil
}

// ListBySession implements Ledger via a filtered GraphQL query.
func (l *WeaviateLedger) ListBySession(ctx context.Context, sessionID string) ([]*datatypes.ApplicationRecord, error) {
	ctx, span := tracer.Start(ctx, "WeaviateLedger.ListBySession")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID))

	if l.client == nil {
		return nil, fmt.Errorf("%w: no Weaviate client configured", ErrLedgerUnavailable)
	}

	whereFilter := filters.Where().
		WithPath([]string{"session_id"}).
		WithOperator(filters.Equal).
		WithValueString(sessionID)
	fields := []graphql.Field{
		{Name: "request_id"},
		{Name: "session_id"},
		{Name: "payload"},
		{Name: "status"},
		{Name: "created_at"},
	}

	resp, err := l.client.GraphQL().Get().
		WithClassName("Application").
		WithFields(fields...).
		WithWhere(whereFilter).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.ApplicationQueryResponse](resp)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	records := make([]*datatypes.ApplicationRecord, 0, len(parsed.Get.Application))
	for _, row := range parsed.Get.Application {
		var record datatypes.ApplicationRecord
		if row.Payload != "" {
			if err := json.Unmarshal([]byte(row.Payload), &record); err != nil {
				slog.Warn("Skipping application with unparsable payload", "request_id", row.RequestID)
				continue
			}
		}
		record.RequestID = row.RequestID
		record.SessionID = row.SessionID
		if row.Status != "" {
			record.Status = datatypes.ApplicationStatus(row.Status)
		}
		records = append(records, &record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt > records[j].CreatedAt })
	return records, nil
}

// isAlreadyExists detects the duplicate-id rejection from Weaviate.
func isAlreadyExists(err error) bool {
	var clientErr *fault.WeaviateClientError
	if errors.As(err, &clientErr) {
		if clientErr.StatusCode == http.StatusUnprocessableEntity &&
			strings.Contains(strings.ToLower(clientErr.Msg), "already exists") {
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

var _ Ledger = (*WeaviateLedger)(nil)
