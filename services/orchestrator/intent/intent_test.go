// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/autofinlabs/autofinance/services/llm"
	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
	"github.com/stretchr/testify/assert"
)

func TestRegexClassifier(t *testing.T) {
	c := NewRegexClassifier()
	ctx := context.Background()

	cases := []struct {
		name string
		text string
		gate datatypes.Gate
		want Intent
	}{
		{"yes with search gate armed", "yes please", datatypes.GateSearchConfirmation, IntentConfirm},
		{"arabic confirm with gate armed", "تمام", datatypes.GateSubmissionConfirmation, IntentConfirm},
		{"go ahead with submission gate", "go ahead and submit it", datatypes.GateSubmissionConfirmation, IntentConfirm},
		{"no with gate armed", "no, not yet", datatypes.GateSubmissionConfirmation, IntentDeny},
		{"arabic deny with gate armed", "لا", datatypes.GateSearchConfirmation, IntentDeny},
		{"arabic confirm mid-sentence", "تمام، يلا", datatypes.GateSearchConfirmation, IntentConfirm},
		// An Arabic word merely starting with a deny particle is not a denial.
		{"arabic deny is not a prefix match", "لازم اشوف الاسعار", datatypes.GateSearchConfirmation, IntentProvideData},

		// A bare "yes" with no gate armed must never read as confirmation.
		{"yes without gate", "yes", datatypes.GateNone, IntentProvideData},
		{"no without gate", "no", datatypes.GateNone, IntentProvideData},

		{"restart wins over gate", "actually let's start over", datatypes.GateSubmissionConfirmation, IntentRestart},
		{"restart plain", "reset everything", datatypes.GateNone, IntentRestart},
		{"status query", "what's the status of my application?", datatypes.GateNone, IntentStatusQuery},
		{"status query arabic", "الطلب وصلت فين", datatypes.GateNone, IntentStatusQuery},

		{"data while gated", "my income is 30000", datatypes.GateSearchConfirmation, IntentProvideData},
		{"criteria text", "I want a Hyundai Tucson 2022 under 1.5 million", datatypes.GateNone, IntentProvideData},

		{"restart arabic", "خلاص نبدأ من الاول", datatypes.GateSubmissionConfirmation, IntentRestart},

		{"closing", "thanks, bye!", datatypes.GateNone, IntentUnrelated},
		{"closing arabic", "شكرا جدا", datatypes.GateNone, IntentUnrelated},
		{"empty", "   ", datatypes.GateNone, IntentUnrelated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Classify(ctx, tc.text, datatypes.PhaseOnboarding, tc.gate)
			assert.Equal(t, tc.want, got)
		})
	}
}

// stubLLM returns a fixed completion or error.
type stubLLM struct {
	reply string
	err   error
}

func (s *stubLLM) Generate(context.Context, string, llm.GenerationParams) (string, error) {
	return s.reply, s.err
}

func (s *stubLLM) Chat(context.Context, []datatypes.Message, llm.GenerationParams) (string, error) {
	return s.reply, s.err
}

func TestLLMClassifier(t *testing.T) {
	ctx := context.Background()

	t.Run("uses model verdict", func(t *testing.T) {
		c := NewLLMClassifier(&stubLLM{reply: "status_query"})
		got := c.Classify(ctx, "where did my request end up", datatypes.PhaseCompleted, datatypes.GateNone)
		assert.Equal(t, IntentStatusQuery, got)
	})

	t.Run("tolerates decorated verdicts", func(t *testing.T) {
		c := NewLLMClassifier(&stubLLM{reply: ` "Confirm". `})
		got := c.Classify(ctx, "yes", datatypes.PhaseAwaitingSearchConfirmation, datatypes.GateSearchConfirmation)
		assert.Equal(t, IntentConfirm, got)
	})

	t.Run("confirm without armed gate downgraded", func(t *testing.T) {
		c := NewLLMClassifier(&stubLLM{reply: "confirm"})
		got := c.Classify(ctx, "yes I like cars", datatypes.PhaseOnboarding, datatypes.GateNone)
		assert.Equal(t, IntentProvideData, got)
	})

	t.Run("model failure falls back to regex", func(t *testing.T) {
		c := NewLLMClassifier(&stubLLM{err: errors.New("model down")})
		got := c.Classify(ctx, "yes", datatypes.PhaseAwaitingSubmissionConfirmation, datatypes.GateSubmissionConfirmation)
		assert.Equal(t, IntentConfirm, got)
	})

	t.Run("off-script answer falls back to regex", func(t *testing.T) {
		c := NewLLMClassifier(&stubLLM{reply: "the user seems enthusiastic"})
		got := c.Classify(ctx, "start over please", datatypes.PhaseProfiling, datatypes.GateNone)
		assert.Equal(t, IntentRestart, got)
	})
}
