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
	"errors"
	"math"

	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
)

// ErrInvalidQuoteInput is returned when the quote inputs are outside the
// valid numeric domain.
var ErrInvalidQuoteInput = errors.New("invalid quote input")

// ComputeQuote calculates a loan quotation with the standard fixed-rate
// amortized payment (PMT) formula:
//
//	PMT = P * r(1+r)^n / ((1+r)^n - 1)
//
// where r is the monthly rate (annual/12) and n the tenure in months. A zero
// annual rate degenerates to principal/tenure. Pure and deterministic; fails
// with ErrInvalidQuoteInput when principal <= 0, annualRate < 0, or
// tenureMonths <= 0.
func ComputeQuote(principal, annualRate float64, tenureMonths int) (*datatypes.FinancialQuote, error) {
	if principal <= 0 || annualRate < 0 || tenureMonths <= 0 {
		return nil, ErrInvalidQuoteInput
	}

	if annualRate == 0 {
		installment := round2(principal / float64(tenureMonths))
		return &datatypes.FinancialQuote{
			Principal:          round2(principal),
			AnnualInterestRate: annualRate,
			TenureMonths:       tenureMonths,
			MonthlyInstallment: installment,
			TotalInterest:      0,
			TotalAmount:        round2(principal),
		}, nil
	}

	monthlyRate := annualRate / 12
	compound := math.Pow(1+monthlyRate, float64(tenureMonths))
	installment := principal * monthlyRate * compound / (compound - 1)

	totalAmount := installment * float64(tenureMonths)
	totalInterest := totalAmount - principal

	return &datatypes.FinancialQuote{
		Principal:          round2(principal),
		AnnualInterestRate: annualRate,
		TenureMonths:       tenureMonths,
		MonthlyInstallment: round2(installment),
		TotalInterest:      round2(totalInterest),
		TotalAmount:        round2(totalAmount),
	}, nil
}

// DebtBurdenRatio returns installment/income, or 1.0 when income is not
// positive (treated as maximally burdened).
func DebtBurdenRatio(monthlyInstallment, monthlyIncome float64) float64 {
	if monthlyIncome <= 0 {
		return 1.0
	}
	return monthlyInstallment / monthlyIncome
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
