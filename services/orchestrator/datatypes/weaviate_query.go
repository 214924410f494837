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
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target
// type. T must have json tags matching the response shape; type mismatches
// produce zero values, not errors.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// ApplicationQueryResponse is the shape returned when fetching an application
// by request_id.
type ApplicationQueryResponse struct {
	Get struct {
		Application []ApplicationResult `json:"Application"`
	} `json:"Get"`
}

// ApplicationResult is a single application row from a query.
type ApplicationResult struct {
	RequestID  string `json:"request_id"`
	SessionID  string `json:"session_id"`
	Payload    string `json:"payload"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"created_at"`
	Additional struct {
		ID string `json:"id"`
	} `json:"_additional"`
}

// CreditPolicyQueryResponse is the shape returned by the nearText policy
// lookup.
type CreditPolicyQueryResponse struct {
	Get struct {
		CreditPolicy []CreditPolicyResult `json:"CreditPolicy"`
	} `json:"Get"`
}

// CreditPolicyResult is a single policy document from the vector index.
type CreditPolicyResult struct {
	Document           string  `json:"document"`
	EmploymentCategory string  `json:"employment_category"`
	InterestRate       float64 `json:"interest_rate"`
	MaxTenureMonths    int     `json:"max_tenure_months"`
	MaxDBR             float64 `json:"max_dbr"`
	MinIncomeEGP       float64 `json:"min_income_egp"`
	MaxVehicleAgeYears int     `json:"max_vehicle_age_years"`
}
