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
	"fmt"
	"strings"

	"github.com/autofinlabs/autofinance/services/policy_engine/enforcement"
	"gopkg.in/yaml.v3"
)

// PolicyEngine serves the embedded fallback credit policy grid.
//
// The grid is loaded once at startup and never mutated afterwards; the
// orchestrator injects the engine into the state machine as an immutable
// configuration value.
type PolicyEngine struct {
	defaultTerms PolicyTerms
	byCategory   map[string]PolicyTerms
}

// NewPolicyEngine initializes a new instance of the PolicyEngine.
//
// It unmarshals the policy definitions embedded in the binary via the
// enforcement package and indexes them by employment category. Returns an
// error if the embedded YAML is malformed or a category entry is incomplete.
func NewPolicyEngine() (*PolicyEngine, error) {
	var file policyFile
	if err := yaml.Unmarshal(enforcement.FallbackCreditPolicies, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded policy file: %w", err)
	}
	if file.Default.AnnualInterestRate <= 0 || file.Default.MaxTenureMonths <= 0 {
		return nil, fmt.Errorf("embedded policy file has no usable default entry")
	}

	byCategory := make(map[string]PolicyTerms, len(file.Categories))
	for _, terms := range file.Categories {
		if terms.EmploymentCategory == "" {
			return nil, fmt.Errorf("embedded policy entry missing employment_category")
		}
		if terms.AnnualInterestRate <= 0 || terms.MaxTenureMonths <= 0 {
			return nil, fmt.Errorf("embedded policy entry %q is incomplete", terms.EmploymentCategory)
		}
		byCategory[strings.ToLower(terms.EmploymentCategory)] = terms
	}

	return &PolicyEngine{defaultTerms: file.Default, byCategory: byCategory}, nil
}

// Resolve returns the fallback terms for an employment category, or the
// conservative default when the category is unknown or empty.
func (e *PolicyEngine) Resolve(employmentCategory string) PolicyTerms {
	if terms, ok := e.byCategory[strings.ToLower(employmentCategory)]; ok {
		return terms
	}
	return e.defaultTerms
}

// Default returns the conservative default terms.
func (e *PolicyEngine) Default() PolicyTerms {
	return e.defaultTerms
}

// Categories returns the known employment categories, for diagnostics.
func (e *PolicyEngine) Categories() []string {
	out := make([]string, 0, len(e.byCategory))
	for name := range e.byCategory {
		out = append(out, name)
	}
	return out
}
