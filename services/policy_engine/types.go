// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package policy_engine

// PolicyTerms is one entry of the fallback credit policy grid.
type PolicyTerms struct {
	EmploymentCategory  string  `yaml:"employment_category"`
	AnnualInterestRate  float64 `yaml:"annual_interest_rate"`
	MaxTenureMonths     int     `yaml:"max_tenure_months"`
	MaxDebtBurdenRatio  float64 `yaml:"max_debt_burden_ratio"`
	MinMonthlyIncomeEGP float64 `yaml:"min_monthly_income_egp"`
	MaxVehicleAgeYears  int     `yaml:"max_vehicle_age_years"`
}

// policyFile is the on-disk (embedded) layout of the fallback grid.
type policyFile struct {
	Default    PolicyTerms   `yaml:"default"`
	Categories []PolicyTerms `yaml:"categories"`
}
