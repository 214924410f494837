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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPolicyEngine_LoadsEmbeddedGrid(t *testing.T) {
	engine, err := NewPolicyEngine()
	require.NoError(t, err)
	require.NotNil(t, engine)

	require.GreaterOrEqual(t, len(engine.Categories()), 4)
}

func TestResolve_KnownCategories(t *testing.T) {
	engine, err := NewPolicyEngine()
	require.NoError(t, err)

	tests := []struct {
		category  string
		wantRate  float64
		wantMonth int
	}{
		{"corporate", 0.16, 84},
		{"salaried", 0.18, 72},
		{"self_employed", 0.20, 60},
		{"other", 0.22, 48},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			terms := engine.Resolve(tt.category)
			require.Equal(t, tt.wantRate, terms.AnnualInterestRate)
			require.Equal(t, tt.wantMonth, terms.MaxTenureMonths)
		})
	}
}

func TestResolve_UnknownCategoryFallsBackToDefault(t *testing.T) {
	engine, err := NewPolicyEngine()
	require.NoError(t, err)

	terms := engine.Resolve("astronaut")
	require.Equal(t, engine.Default(), terms)

	terms = engine.Resolve("")
	require.Equal(t, engine.Default(), terms)
}

func TestResolve_CaseInsensitive(t *testing.T) {
	engine, err := NewPolicyEngine()
	require.NoError(t, err)

	require.Equal(t, engine.Resolve("salaried"), engine.Resolve("Salaried"))
}
