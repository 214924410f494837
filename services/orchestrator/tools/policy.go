// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var policyTracer = otel.Tracer("autofin.tools.policy")

// ErrPolicyUnavailable is returned when the live policy index cannot answer.
// The state machine substitutes the fallback policy rather than failing the
// turn.
var ErrPolicyUnavailable = errors.New("policy lookup unavailable")

// ApplicantProfile is the lookup key for a credit policy.
type ApplicantProfile struct {
	MonthlyIncome  float64
	EmploymentType datatypes.EmploymentType
}

// PolicySource resolves the credit policy for an applicant and vehicle.
//
// Results are not guaranteed repeatable: the backing index may be updated
// externally between calls. Callers must capture the policy they acted on.
type PolicySource interface {
	Lookup(ctx context.Context, profile ApplicantProfile, vehicleAgeYears int, price float64) (*datatypes.CreditPolicy, error)
}

// WeaviatePolicySource retrieves policy documents via nearText search on the
// CreditPolicy class and applies eligibility rules to the best match.
type WeaviatePolicySource struct {
	client *weaviate.Client
}

func NewWeaviatePolicySource(client *weaviate.Client) *WeaviatePolicySource {
	return &WeaviatePolicySource{client: client}
}

// Lookup implements PolicySource. One attempt per call; any failure maps to
// ErrPolicyUnavailable so the caller can fall back.
func (w *WeaviatePolicySource) Lookup(ctx context.Context, profile ApplicantProfile,
	vehicleAgeYears int, price float64) (*datatypes.CreditPolicy, error) {

	ctx, span := policyTracer.Start(ctx, "WeaviatePolicySource.Lookup")
	defer span.End()
	span.SetAttributes(
		attribute.String("employment_type", string(profile.EmploymentType)),
		attribute.Int("vehicle_age_years", vehicleAgeYears),
	)

	if w.client == nil {
		return nil, fmt.Errorf("%w: no Weaviate client configured", ErrPolicyUnavailable)
	}

	concepts := []string{
		fmt.Sprintf("%s applicant", profile.EmploymentType),
		fmt.Sprintf("vehicle %d years old", vehicleAgeYears),
	}
	nearText := w.client.GraphQL().NearTextArgBuilder().WithConcepts(concepts)

	fields := []graphql.Field{
		{Name: "document"},
		{Name: "employment_category"},
		{Name: "interest_rate"},
		{Name: "max_tenure_months"},
		{Name: "max_dbr"},
		{Name: "min_income_egp"},
		{Name: "max_vehicle_age_years"},
	}

	resp, err := w.client.GraphQL().Get().
		WithClassName("CreditPolicy").
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Policy lookup query failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPolicyUnavailable, err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.CreditPolicyQueryResponse](resp)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrPolicyUnavailable, err)
	}
	if len(parsed.Get.CreditPolicy) == 0 {
		return nil, fmt.Errorf("%w: no policy documents matched", ErrPolicyUnavailable)
	}

	doc := parsed.Get.CreditPolicy[0]
	policy := &datatypes.CreditPolicy{
		EmploymentType:     profile.EmploymentType,
		AnnualInterestRate: doc.InterestRate,
		MaxTenureMonths:    doc.MaxTenureMonths,
		MaxDebtBurdenRatio: doc.MaxDBR,
		MinMonthlyIncome:   doc.MinIncomeEGP,
		MaxVehicleAgeYears: doc.MaxVehicleAgeYears,
		Eligible:           true,
	}
	ApplyEligibilityRules(policy, profile, vehicleAgeYears)

	span.SetAttributes(attribute.Bool("eligible", policy.Eligible))
	return policy, nil
}

// ApplyEligibilityRules checks the applicant and vehicle against the policy
// thresholds, setting Eligible and RejectionReason in place. Fallback
// policies skip these rules: a fallback is always treated as passing.
func ApplyEligibilityRules(policy *datatypes.CreditPolicy, profile ApplicantProfile, vehicleAgeYears int) {
	if policy.IsFallback {
		policy.Eligible = true
		policy.RejectionReason = ""
		return
	}

	switch {
	case profile.MonthlyIncome < policy.MinMonthlyIncome:
		policy.Eligible = false
		policy.RejectionReason = fmt.Sprintf(
			"minimum income requirement is %.0f EGP; a monthly income of %.0f EGP does not meet it",
			policy.MinMonthlyIncome, profile.MonthlyIncome)
	case policy.MaxVehicleAgeYears > 0 && vehicleAgeYears > policy.MaxVehicleAgeYears:
		policy.Eligible = false
		policy.RejectionReason = fmt.Sprintf(
			"maximum vehicle age allowed is %d years; the selected vehicle is %d years old",
			policy.MaxVehicleAgeYears, vehicleAgeYears)
	default:
		policy.Eligible = true
		policy.RejectionReason = ""
	}
}
