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

import (
	"context"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// GetApplicationSchema returns the class definition for submitted loan
// applications. Applications are keyed by request_id; the object UUID is
// derived from it so duplicate inserts collide instead of duplicating.
func GetApplicationSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       "Application",
		Description: "A finalized vehicle loan pre-approval application.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:            "request_id",
				DataType:        []string{"text"},
				Description:     "Unique request identifier (UUID).",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "session_id",
				DataType:        []string{"text"},
				Description:     "Conversation session that produced the application.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:        "payload",
				DataType:    []string{"text"},
				Description: "Full application record as JSON.",
			},
			{
				Name:            "status",
				DataType:        []string{"text"},
				Description:     "Back-office review status.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:        "created_at",
				DataType:    []string{"int"},
				Description: "Submission time in unix milliseconds.",
			},
		},
	}
}

// GetCreditPolicySchema returns the class definition for the credit policy
// corpus queried at quoting time.
func GetCreditPolicySchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       "CreditPolicy",
		Description: "A credit policy document for semantic retrieval.",
		Vectorizer:  "text2vec-transformers",
		Properties: []*models.Property{
			{
				Name:        "document",
				DataType:    []string{"text"},
				Description: "Policy text used for embedding.",
			},
			{
				Name:            "employment_category",
				DataType:        []string{"text"},
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{Name: "interest_rate", DataType: []string{"number"}},
			{Name: "max_tenure_months", DataType: []string{"int"}},
			{Name: "max_dbr", DataType: []string{"number"}},
			{Name: "min_income_egp", DataType: []string{"number"}},
			{Name: "max_vehicle_age_years", DataType: []string{"int"}},
		},
	}
}

// EnsureWeaviateSchema creates the Application and CreditPolicy classes if
// they do not already exist. Failures are logged, not fatal: the orchestrator
// can run in lightweight mode without Weaviate.
func EnsureWeaviateSchema(client *weaviate.Client) {
	ctx := context.Background()
	for _, class := range []*models.Class{GetApplicationSchema(), GetCreditPolicySchema()} {
		exists, err := client.Schema().ClassExistenceChecker().WithClassName(class.Class).Do(ctx)
		if err != nil {
			slog.Error("Failed to check Weaviate class existence", "class", class.Class, "error", err)
			continue
		}
		if exists {
			continue
		}
		if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
			slog.Error("Failed to create Weaviate class", "class", class.Class, "error", err)
			continue
		}
		slog.Info("Created Weaviate class", "class", class.Class)
	}
}
