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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/autofinlabs/autofinance/services/llm"
	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("autofin.intent")

const classifyPrompt = `You are an intent classifier for a car financing assistant.
Classify the user message into exactly one label:

confirm      - user approves the pending action
deny         - user refuses the pending action
provide_data - user supplies information (car preferences, income, job, contact details, a selection)
restart      - user wants to abandon progress and start over
status_query - user asks about a submitted application's status
unrelated    - chitchat, thanks, or off-topic

Conversation phase: %s
Pending confirmation: %s

User message: %q

Answer with only the label.`

// LLMClassifier asks the model for the intent and falls back to the regex
// classifier when the model is unavailable or answers off-script. Gate rules
// still apply: a confirm or deny verdict without an armed gate is downgraded.
type LLMClassifier struct {
	client   llm.LLMClient
	fallback *RegexClassifier
	timeout  time.Duration
}

func NewLLMClassifier(client llm.LLMClient) *LLMClassifier {
	return &LLMClassifier{
		client:   client,
		fallback: NewRegexClassifier(),
		timeout:  10 * time.Second,
	}
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, text string, phase datatypes.Phase, gate datatypes.Gate) Intent {
	ctx, span := tracer.Start(ctx, "LLMClassifier.Classify")
	defer span.End()
	span.SetAttributes(attribute.String("phase", string(phase)))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	gateDesc := "none"
	if gate != datatypes.GateNone {
		gateDesc = string(gate)
	}
	prompt := fmt.Sprintf(classifyPrompt, phase, gateDesc, text)

	temperature := float32(0)
	maxTokens := 8
	raw, err := c.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		span.RecordError(err)
		slog.Warn("LLM intent classification failed, using regex fallback", "error", err)
		return c.fallback.Classify(ctx, text, phase, gate)
	}

	verdict := parseVerdict(raw)
	if verdict == "" {
		slog.Warn("LLM intent classification returned unknown label, using regex fallback", "raw", raw)
		return c.fallback.Classify(ctx, text, phase, gate)
	}

	if gate == datatypes.GateNone && (verdict == IntentConfirm || verdict == IntentDeny) {
		verdict = IntentProvideData
	}
	span.SetAttributes(attribute.String("intent", string(verdict)))
	return verdict
}

func parseVerdict(raw string) Intent {
	label := strings.ToLower(strings.TrimSpace(raw))
	label = strings.Trim(label, `"'.`)
	if fields := strings.Fields(label); len(fields) > 0 {
		label = fields[0]
	}
	switch Intent(label) {
	case IntentConfirm, IntentDeny, IntentProvideData, IntentRestart, IntentStatusQuery, IntentUnrelated:
		return Intent(label)
	}
	return ""
}

var _ Classifier = (*LLMClassifier)(nil)
