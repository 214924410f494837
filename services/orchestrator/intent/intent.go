// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intent resolves a user turn into a coarse conversational intent.
//
// Classification is deliberately separate from the state machine: the engine
// consumes an Intent plus the raw text, and the classifier never mutates
// state. Confirmation and denial are only recognized while a gate is armed,
// so a stray "yes" in an unrelated sentence cannot trigger a side effect.
package intent

import (
	"context"
	"regexp"
	"strings"

	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
)

// Intent is the resolved conversational intent of one user turn.
type Intent string

const (
	// IntentConfirm is an explicit approval of the armed gate.
	IntentConfirm Intent = "confirm"
	// IntentDeny is an explicit refusal of the armed gate.
	IntentDeny Intent = "deny"
	// IntentProvideData carries information for the current phase.
	IntentProvideData Intent = "provide_data"
	// IntentRestart asks to abandon progress and start over.
	IntentRestart Intent = "restart"
	// IntentStatusQuery asks about a submitted application.
	IntentStatusQuery Intent = "status_query"
	// IntentUnrelated is chitchat or a closing remark.
	IntentUnrelated Intent = "unrelated"
)

// Classifier resolves the intent of a user message given the session's phase
// and armed gate.
type Classifier interface {
	Classify(ctx context.Context, text string, phase datatypes.Phase, gate datatypes.Gate) Intent
}

var (
	confirmRe = regexp.MustCompile(`(?i)^\s*(yes|yeah|yep|yup|sure|ok(ay)?|confirm(ed)?|go ahead|proceed|sounds good|do it|let'?s go)\b`)
	denyRe    = regexp.MustCompile(`(?i)^\s*(no|nope|nah|not (now|yet)|cancel|don'?t|stop|hold o(n|ff))\b`)
	restartRe = regexp.MustCompile(`(?i)\b(start over|restart|reset|from scratch|new search|different car|something else instead)\b`)
	statusRe  = regexp.MustCompile(`(?i)\b(status|any update|my application|did it go through|(request|application) id)\b`)
	closingRe = regexp.MustCompile(`(?i)^\s*(thanks|thank you|thx|bye|goodbye|see you|that'?s all)\b`)

	// RE2's \b is ASCII-only, so Arabic alternatives get explicit
	// delimiters instead of word boundaries.
	arEnd = `(?:[\s!.،؟]|$)`

	arConfirmRe = regexp.MustCompile(`^\s*(تمام|ايوه|اه|موافق|ماشي)` + arEnd)
	arDenyRe    = regexp.MustCompile(`^\s*(لا|لأ|مش موافق)` + arEnd)
	arRestartRe = regexp.MustCompile(`(?:^|\s)(من الاول|ابدأ من جديد)` + arEnd)
	arStatusRe  = regexp.MustCompile(`(?:^|\s)(وصلت فين|ايه اخبار الطلب)` + arEnd)
	arClosingRe = regexp.MustCompile(`^\s*(شكرا|مع السلامة)` + arEnd)
)

// RegexClassifier is a deterministic pattern classifier covering common
// English and Egyptian Arabic phrasings. Used standalone in lightweight mode
// and as the fallback behind the LLM classifier.
type RegexClassifier struct{}

func NewRegexClassifier() *RegexClassifier {
	return &RegexClassifier{}
}

// Classify implements Classifier. Restart and status queries win over
// everything; confirm and deny only apply while a gate is armed.
func (r *RegexClassifier) Classify(_ context.Context, text string, _ datatypes.Phase, gate datatypes.Gate) Intent {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return IntentUnrelated
	}

	switch {
	case restartRe.MatchString(trimmed) || arRestartRe.MatchString(trimmed):
		return IntentRestart
	case statusRe.MatchString(trimmed) || arStatusRe.MatchString(trimmed):
		return IntentStatusQuery
	}

	if gate != datatypes.GateNone {
		switch {
		case confirmRe.MatchString(trimmed) || arConfirmRe.MatchString(trimmed):
			return IntentConfirm
		case denyRe.MatchString(trimmed) || arDenyRe.MatchString(trimmed):
			return IntentDeny
		}
	}

	if closingRe.MatchString(trimmed) || arClosingRe.MatchString(trimmed) {
		return IntentUnrelated
	}
	return IntentProvideData
}

var _ Classifier = (*RegexClassifier)(nil)
