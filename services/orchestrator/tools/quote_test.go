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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeQuote(t *testing.T) {
	t.Run("standard amortized loan", func(t *testing.T) {
		quote, err := ComputeQuote(200000, 0.18, 60)
		require.NoError(t, err)

		// Closed form: 200000 * r(1+r)^60 / ((1+r)^60 - 1), r = 0.015.
		r := 0.18 / 12
		compound := math.Pow(1+r, 60)
		want := 200000 * r * compound / (compound - 1)
		assert.InDelta(t, want, quote.MonthlyInstallment, 0.01)
		assert.InDelta(t, quote.MonthlyInstallment*60, quote.TotalAmount, 0.5)
		assert.InDelta(t, quote.TotalAmount-200000, quote.TotalInterest, 0.5)
		assert.Equal(t, 60, quote.TenureMonths)
	})

	t.Run("zero rate degenerates to principal over tenure", func(t *testing.T) {
		quote, err := ComputeQuote(100000, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, 10000.0, quote.MonthlyInstallment)
		assert.Equal(t, 0.0, quote.TotalInterest)
		assert.Equal(t, 100000.0, quote.TotalAmount)
	})

	t.Run("invalid inputs", func(t *testing.T) {
		cases := []struct {
			name      string
			principal float64
			rate      float64
			tenure    int
		}{
			{"zero principal", 0, 0.18, 60},
			{"negative principal", -5, 0.18, 60},
			{"negative rate", 100000, -0.01, 60},
			{"zero tenure", 100000, 0.18, 0},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := ComputeQuote(tc.principal, tc.rate, tc.tenure)
				assert.ErrorIs(t, err, ErrInvalidQuoteInput)
			})
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		a, err := ComputeQuote(350000, 0.16, 48)
		require.NoError(t, err)
		b, err := ComputeQuote(350000, 0.16, 48)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestDebtBurdenRatio(t *testing.T) {
	assert.InDelta(t, 0.25, DebtBurdenRatio(5000, 20000), 1e-9)
	assert.Equal(t, 1.0, DebtBurdenRatio(5000, 0))
	assert.Equal(t, 1.0, DebtBurdenRatio(5000, -100))
}
