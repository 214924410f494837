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
	"fmt"
	"strings"
	"time"
)

// Phase is the macro-status of a financing conversation.
type Phase string

const (
	PhaseOnboarding                     Phase = "onboarding"
	PhaseAwaitingSearchConfirmation     Phase = "awaiting_search_confirmation"
	PhaseSearching                      Phase = "searching"
	PhaseAwaitingSelection              Phase = "awaiting_selection"
	PhaseRefinement                     Phase = "refinement"
	PhaseProfiling                      Phase = "profiling"
	PhaseQuoting                        Phase = "quoting"
	PhaseIneligible                     Phase = "ineligible"
	PhaseAwaitingSubmissionConfirmation Phase = "awaiting_submission_confirmation"
	PhaseCompleted                      Phase = "completed"
)

// Gate identifies which human confirmation the session is blocked on.
// Side-effecting operations (market search, ledger submission) only run in a
// turn where the matching gate is armed and the resolved intent is an
// explicit confirmation.
type Gate string

const (
	GateNone                   Gate = ""
	GateSearchConfirmation     Gate = "search_confirmation"
	GateSubmissionConfirmation Gate = "submission_confirmation"
)

// EmploymentType is the applicant's employment category for credit assessment.
type EmploymentType string

const (
	EmploymentSalaried     EmploymentType = "salaried"
	EmploymentSelfEmployed EmploymentType = "self_employed"
	EmploymentCorporate    EmploymentType = "corporate"
	EmploymentOther        EmploymentType = "other"
)

// Message is a single entry in the session's append-only conversation log.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// SearchCriteria is the structured vehicle query extracted from user text.
type SearchCriteria struct {
	Make     string  `json:"make,omitempty"`
	Model    string  `json:"model,omitempty"`
	YearMin  int     `json:"year_min,omitempty"`
	YearMax  int     `json:"year_max,omitempty"`
	PriceCap float64 `json:"price_cap,omitempty"`
}

// Summary renders the criteria the way they are echoed back for confirmation.
func (c SearchCriteria) Summary() string {
	var parts []string
	if c.Make != "" {
		parts = append(parts, c.Make)
	}
	if c.Model != "" {
		parts = append(parts, c.Model)
	}
	switch {
	case c.YearMin > 0 && c.YearMax > 0 && c.YearMin != c.YearMax:
		parts = append(parts, fmt.Sprintf("%d-%d", c.YearMin, c.YearMax))
	case c.YearMin > 0:
		parts = append(parts, fmt.Sprintf("%d", c.YearMin))
	case c.YearMax > 0:
		parts = append(parts, fmt.Sprintf("up to %d", c.YearMax))
	}
	if c.PriceCap > 0 {
		parts = append(parts, fmt.Sprintf("under %.0f EGP", c.PriceCap))
	}
	if len(parts) == 0 {
		return "any vehicle"
	}
	return strings.Join(parts, " ")
}

// Vehicle is a marketplace listing. Immutable once added to search results.
type Vehicle struct {
	Make       string  `json:"make"`
	Model      string  `json:"model"`
	Year       int     `json:"year"`
	Price      float64 `json:"price"` // EGP
	Mileage    *int    `json:"mileage,omitempty"`
	SourceURL  string  `json:"source_url"`
	SourceSite string  `json:"source_site,omitempty"`
}

// Label returns the short display name, e.g. "2022 Hyundai Tucson".
func (v Vehicle) Label() string {
	return strings.TrimSpace(fmt.Sprintf("%d %s %s", v.Year, v.Make, v.Model))
}

// AgeYears returns the vehicle age relative to the given reference time.
func (v Vehicle) AgeYears(now time.Time) int {
	age := now.Year() - v.Year
	if age < 0 {
		return 0
	}
	return age
}

// CreditPolicy is a resolved credit policy, either retrieved from the vector
// index or substituted from the embedded fallback grid.
type CreditPolicy struct {
	EmploymentType     EmploymentType `json:"employment_type"`
	AnnualInterestRate float64        `json:"annual_interest_rate"` // decimal, e.g. 0.18
	MaxTenureMonths    int            `json:"max_tenure_months"`
	MaxDebtBurdenRatio float64        `json:"max_debt_burden_ratio"`
	MinMonthlyIncome   float64        `json:"min_monthly_income"` // EGP
	MaxVehicleAgeYears int            `json:"max_vehicle_age_years"`
	Eligible           bool           `json:"eligible"`
	RejectionReason    string         `json:"rejection_reason,omitempty"`
	IsFallback         bool           `json:"is_fallback"`
}

// FinancialQuote is a PMT-based loan quotation.
type FinancialQuote struct {
	Principal          float64 `json:"principal"`
	AnnualInterestRate float64 `json:"annual_interest_rate"`
	TenureMonths       int     `json:"tenure_months"`
	MonthlyInstallment float64 `json:"monthly_installment"`
	TotalInterest      float64 `json:"total_interest"`
	TotalAmount        float64 `json:"total_amount"`
	EstimateOnly       bool    `json:"estimate_only"`
}

// CustomerInfo is the PII bundle collected before submission.
type CustomerInfo struct {
	FullName   string `json:"full_name" validate:"required,min=3,max=80"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required,min=10,max=15"`
	NationalID string `json:"national_id,omitempty" validate:"omitempty,len=14,numeric"`
}

// ApplicationStatus is the back-office review status of a submitted request.
type ApplicationStatus string

const (
	StatusPendingReview     ApplicationStatus = "pending_review"
	StatusUnderReview       ApplicationStatus = "under_review"
	StatusApproved          ApplicationStatus = "approved"
	StatusRejected          ApplicationStatus = "rejected"
	StatusDocumentsRequired ApplicationStatus = "documents_required"
)

// ApplicationRecord is the finalized application written to the ledger.
type ApplicationRecord struct {
	RequestID      string            `json:"request_id"`
	SessionID      string            `json:"session_id"`
	Customer       CustomerInfo      `json:"customer"`
	Vehicle        Vehicle           `json:"vehicle"`
	Quote          FinancialQuote    `json:"quote"`
	MonthlyIncome  float64           `json:"monthly_income"`
	EmploymentType EmploymentType    `json:"employment_type"`
	Status         ApplicationStatus `json:"status"`
	CreatedAt      int64             `json:"created_at"`
}
