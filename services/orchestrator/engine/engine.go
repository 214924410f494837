// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine holds the conversation state machine.
//
// The engine is pure: Step and ApplyResult mutate only the state they are
// handed and never touch the network or storage. Side effects are described
// as Effect values; the controller executes them and feeds the outcome back
// through ApplyResult. A turn requests at most one effect.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
	"github.com/autofinlabs/autofinance/services/orchestrator/intent"
	"github.com/autofinlabs/autofinance/services/orchestrator/ledger"
	"github.com/autofinlabs/autofinance/services/orchestrator/tools"
	policyengine "github.com/autofinlabs/autofinance/services/policy_engine"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// defaultMaxTenureMonths caps loan tenure regardless of policy terms.
const defaultMaxTenureMonths = 60

// EffectKind discriminates the side effect a turn requests.
type EffectKind string

const (
	EffectSearch       EffectKind = "search"
	EffectPolicyLookup EffectKind = "policy_lookup"
	EffectSubmit       EffectKind = "submit"
	EffectStatusFetch  EffectKind = "status_fetch"
)

// Effect describes one side effect for the controller to execute. Exactly
// one field group is populated, per Kind.
type Effect struct {
	Kind EffectKind

	Criteria datatypes.SearchCriteria // EffectSearch

	Profile         tools.ApplicantProfile // EffectPolicyLookup
	VehicleAgeYears int
	VehiclePrice    float64

	Record *datatypes.ApplicationRecord // EffectSubmit

	RequestID string // EffectStatusFetch
}

// EffectResult carries the outcome of an executed effect back into
// ApplyResult.
type EffectResult struct {
	Vehicles []datatypes.Vehicle
	Policy   *datatypes.CreditPolicy
	Record   *datatypes.ApplicationRecord
	Err      error
}

// Decision is the outcome of one Step call. Reply may be empty when the turn
// requests an effect whose ApplyResult produces the reply.
type Decision struct {
	Reply  string
	Effect *Effect
}

// Engine drives phase transitions for financing conversations.
type Engine struct {
	policies     *policyengine.PolicyEngine
	validate     *validator.Validate
	now          func() time.Time
	newRequestID func() string
}

func New(policies *policyengine.PolicyEngine) *Engine {
	return &Engine{
		policies:     policies,
		validate:     validator.New(),
		now:          time.Now,
		newRequestID: uuid.NewString,
	}
}

// Step advances the session one user turn. It mutates state in place; the
// caller passes a clone and only persists it after the turn succeeds.
func (e *Engine) Step(state *datatypes.SessionState, in intent.Intent, text string) Decision {
	state.UpdatedAt = e.now().UnixMilli()

	// Restart and status queries are honored in every phase.
	switch in {
	case intent.IntentRestart:
		state.Reset()
		return Decision{Reply: restartReply}
	case intent.IntentStatusQuery:
		// An explicit request id in the message wins over this session's own
		// application, so a user can check any reference number they hold.
		if requestID, ok := extractRequestID(text); ok {
			return Decision{Effect: &Effect{Kind: EffectStatusFetch, RequestID: requestID}}
		}
		if state.RequestID != "" {
			return Decision{Effect: &Effect{Kind: EffectStatusFetch, RequestID: state.RequestID}}
		}
		return Decision{Reply: "You don't have a submitted application yet. " +
			"Let's finish one first; " + phasePrompt(state)}
	}

	// A persisted transient phase means a previous turn crashed between the
	// effect and its commit. Recover instead of leaving the session stuck.
	if state.Phase == datatypes.PhaseSearching {
		state.Phase = datatypes.PhaseAwaitingSearchConfirmation
		state.PendingGate = datatypes.GateSearchConfirmation
	}
	if state.Phase == datatypes.PhaseQuoting && state.Quote == nil && state.ProfileComplete() {
		return e.requestPolicyLookup(state)
	}

	if in == intent.IntentUnrelated {
		// A completed session gets a closing acknowledgment, not a pitch
		// for a new search.
		if state.Phase == datatypes.PhaseCompleted {
			return Decision{Reply: fmt.Sprintf(
				"You're welcome! Your application %s is in review; ask me for its status anytime.",
				state.RequestID)}
		}
		return Decision{Reply: "Happy to help with your car financing. " + phasePrompt(state)}
	}

	switch state.Phase {
	case datatypes.PhaseOnboarding:
		return e.stepOnboarding(state, text)
	case datatypes.PhaseAwaitingSearchConfirmation:
		return e.stepAwaitingSearchConfirmation(state, in, text)
	case datatypes.PhaseRefinement:
		return e.stepRefinement(state, text)
	case datatypes.PhaseAwaitingSelection:
		return e.stepAwaitingSelection(state, text)
	case datatypes.PhaseProfiling:
		return e.stepProfiling(state, text)
	case datatypes.PhaseQuoting:
		return e.stepQuoting(state, in, text)
	case datatypes.PhaseAwaitingSubmissionConfirmation:
		return e.stepAwaitingSubmission(state, in, text)
	case datatypes.PhaseIneligible:
		return e.stepIneligible(state, text)
	case datatypes.PhaseCompleted:
		return Decision{Reply: fmt.Sprintf(
			"Your application %s is already submitted. Ask me for its status, or say \"start over\" for a new search.",
			state.RequestID)}
	default:
		state.Phase = datatypes.PhaseOnboarding
		return Decision{Reply: welcomeReply}
	}
}

func (e *Engine) stepOnboarding(state *datatypes.SessionState, text string) Decision {
	criteria, found := extractCriteria(text)
	if !found {
		if len(state.Messages) <= 1 {
			return Decision{Reply: welcomeReply}
		}
		return Decision{Reply: askCriteriaReply}
	}
	merged := mergeCriteria(state.SearchCriteria, criteria)
	state.SearchCriteria = &merged
	state.Phase = datatypes.PhaseAwaitingSearchConfirmation
	state.PendingGate = datatypes.GateSearchConfirmation
	return Decision{Reply: confirmSearchReply(merged)}
}

func (e *Engine) stepAwaitingSearchConfirmation(state *datatypes.SessionState, in intent.Intent, text string) Decision {
	switch in {
	case intent.IntentConfirm:
		state.Phase = datatypes.PhaseSearching
		state.PendingGate = datatypes.GateNone
		return Decision{Effect: &Effect{Kind: EffectSearch, Criteria: *state.SearchCriteria}}
	case intent.IntentDeny:
		state.Phase = datatypes.PhaseRefinement
		state.PendingGate = datatypes.GateNone
		return Decision{Reply: "Okay, I won't search yet. What would you like to change?"}
	default:
		if criteria, found := extractCriteria(text); found {
			merged := mergeCriteria(state.SearchCriteria, criteria)
			state.SearchCriteria = &merged
			return Decision{Reply: confirmSearchReply(merged)}
		}
		return Decision{Reply: confirmSearchReply(*state.SearchCriteria)}
	}
}

func (e *Engine) stepRefinement(state *datatypes.SessionState, text string) Decision {
	criteria, found := extractCriteria(text)
	if !found {
		return Decision{Reply: askCriteriaReply}
	}
	merged := mergeCriteria(state.SearchCriteria, criteria)
	state.SearchCriteria = &merged
	state.Phase = datatypes.PhaseAwaitingSearchConfirmation
	state.PendingGate = datatypes.GateSearchConfirmation
	return Decision{Reply: confirmSearchReply(merged)}
}

func (e *Engine) stepAwaitingSelection(state *datatypes.SessionState, text string) Decision {
	if len(state.SearchResults) == 0 {
		state.Phase = datatypes.PhaseRefinement
		return Decision{Reply: askCriteriaReply}
	}

	index, ambiguous, ok := extractSelection(text, state.SearchResults)
	if ok && ambiguous {
		return Decision{Reply: disambiguationReply(state.SearchResults)}
	}
	if ok {
		vehicle := state.SearchResults[index]
		state.SelectedVehicle = &vehicle
		state.Phase = datatypes.PhaseProfiling
		if state.ProfileComplete() {
			return e.requestPolicyLookup(state)
		}
		return Decision{Reply: askProfileReply}
	}

	// Not a selection. New criteria restart the search loop instead.
	if criteria, found := extractCriteria(text); found {
		merged := mergeCriteria(state.SearchCriteria, criteria)
		state.SearchCriteria = &merged
		state.SearchResults = nil
		state.Phase = datatypes.PhaseAwaitingSearchConfirmation
		state.PendingGate = datatypes.GateSearchConfirmation
		return Decision{Reply: confirmSearchReply(merged)}
	}
	return Decision{Reply: "I didn't catch which listing you meant. " + disambiguationReply(state.SearchResults)}
}

func (e *Engine) stepProfiling(state *datatypes.SessionState, text string) Decision {
	if income, found := extractIncome(text); found {
		state.MonthlyIncome = &income
	}
	if employment, found := extractEmployment(text); found {
		state.EmploymentType = employment
	}

	if !state.ProfileComplete() {
		if state.MonthlyIncome == nil {
			return Decision{Reply: askIncomeReply()}
		}
		return Decision{Reply: askEmploymentReply()}
	}
	return e.requestPolicyLookup(state)
}

// requestPolicyLookup moves the session into quoting and emits the lookup
// effect. The phase is persisted before the effect runs, so a crash here is
// recovered by the transient-phase check at the top of Step.
func (e *Engine) requestPolicyLookup(state *datatypes.SessionState) Decision {
	state.Phase = datatypes.PhaseQuoting
	state.PendingGate = datatypes.GateNone
	return Decision{Effect: &Effect{
		Kind: EffectPolicyLookup,
		Profile: tools.ApplicantProfile{
			MonthlyIncome:  *state.MonthlyIncome,
			EmploymentType: state.EmploymentType,
		},
		VehicleAgeYears: state.SelectedVehicle.AgeYears(e.now()),
		VehiclePrice:    state.SelectedVehicle.Price,
	}}
}

func (e *Engine) stepQuoting(state *datatypes.SessionState, in intent.Intent, text string) Decision {
	// The submission gate is armed as soon as the quote is presented, so a
	// plain refusal here discards the quote instead of being read as data.
	if in == intent.IntentDeny {
		state.DiscardQuote()
		return Decision{Reply: "Okay, I'll set that quote aside. Your financial profile is saved; " +
			"tell me what car you'd like to look at instead."}
	}

	if state.Customer == nil {
		state.Customer = &datatypes.CustomerInfo{}
	}
	extractCustomer(text, state.Customer)

	if state.Customer.FullName == "" || state.Customer.Email == "" || state.Customer.Phone == "" {
		return Decision{Reply: askMissingContactReply(state.Customer)}
	}

	if err := e.validate.Struct(state.Customer); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				switch fe.Field() {
				case "FullName":
					state.Customer.FullName = ""
				case "Email":
					state.Customer.Email = ""
				case "Phone":
					state.Customer.Phone = ""
				case "NationalID":
					state.Customer.NationalID = ""
				}
			}
		}
		return Decision{Reply: askMissingContactReply(state.Customer)}
	}

	state.Phase = datatypes.PhaseAwaitingSubmissionConfirmation
	state.PendingGate = datatypes.GateSubmissionConfirmation
	return Decision{Reply: confirmSubmissionReply(state)}
}

func (e *Engine) stepAwaitingSubmission(state *datatypes.SessionState, in intent.Intent, text string) Decision {
	switch in {
	case intent.IntentConfirm:
		// Reuse the pending id from a crashed or failed attempt so the
		// ledger insert stays idempotent.
		if state.PendingRequestID == "" {
			state.PendingRequestID = e.newRequestID()
		}
		return Decision{Effect: &Effect{Kind: EffectSubmit, Record: e.buildRecord(state)}}
	case intent.IntentDeny:
		state.DiscardQuote()
		return Decision{Reply: "Okay, I won't submit it. Your financial profile is saved; " +
			"tell me if you'd like to look at a different car."}
	default:
		// Possibly corrected contact details.
		updated := datatypes.CustomerInfo{}
		if extractCustomer(text, &updated) {
			overlayCustomer(state.Customer, updated)
			if err := e.validate.Struct(state.Customer); err == nil {
				return Decision{Reply: confirmSubmissionReply(state)}
			}
		}
		return Decision{Reply: confirmSubmissionReply(state)}
	}
}

func (e *Engine) stepIneligible(state *datatypes.SessionState, text string) Decision {
	// A different listing from the last search can be financed directly.
	if index, ambiguous, ok := extractSelection(text, state.SearchResults); ok {
		if ambiguous {
			return Decision{Reply: disambiguationReply(state.SearchResults)}
		}
		vehicle := state.SearchResults[index]
		state.SelectedVehicle = &vehicle
		state.Policy = nil
		state.Quote = nil
		if state.ProfileComplete() {
			return e.requestPolicyLookup(state)
		}
		state.Phase = datatypes.PhaseProfiling
		return Decision{Reply: askProfileReply}
	}
	if criteria, found := extractCriteria(text); found {
		merged := mergeCriteria(state.SearchCriteria, criteria)
		state.SearchCriteria = &merged
		state.SearchResults = nil
		state.SelectedVehicle = nil
		state.Policy = nil
		state.Quote = nil
		state.Phase = datatypes.PhaseAwaitingSearchConfirmation
		state.PendingGate = datatypes.GateSearchConfirmation
		return Decision{Reply: confirmSearchReply(merged)}
	}
	return Decision{Reply: "You can pick another listing, give me new search criteria, or say \"start over\"."}
}

// ApplyResult folds an executed effect's outcome back into the state and
// produces the assistant reply for the turn.
func (e *Engine) ApplyResult(state *datatypes.SessionState, effect *Effect, result EffectResult) string {
	switch effect.Kind {
	case EffectSearch:
		return e.applySearchResult(state, effect, result)
	case EffectPolicyLookup:
		return e.applyPolicyResult(state, effect, result)
	case EffectSubmit:
		return e.applySubmitResult(state, result)
	case EffectStatusFetch:
		return e.applyStatusResult(result)
	default:
		return askCriteriaReply
	}
}

func (e *Engine) applySearchResult(state *datatypes.SessionState, effect *Effect, result EffectResult) string {
	if result.Err != nil {
		state.Phase = datatypes.PhaseAwaitingSearchConfirmation
		state.PendingGate = datatypes.GateSearchConfirmation
		return searchFailedReply
	}
	if len(result.Vehicles) == 0 {
		state.Phase = datatypes.PhaseRefinement
		state.PendingGate = datatypes.GateNone
		return noResultsReply(effect.Criteria)
	}
	state.SearchResults = result.Vehicles
	state.Phase = datatypes.PhaseAwaitingSelection
	state.PendingGate = datatypes.GateNone
	return resultsReply(result.Vehicles)
}

func (e *Engine) applyPolicyResult(state *datatypes.SessionState, effect *Effect, result EffectResult) string {
	policy := result.Policy
	if result.Err != nil || policy == nil {
		// One live attempt per turn; the embedded grid answers instead.
		terms := e.policies.Resolve(string(effect.Profile.EmploymentType))
		policy = &datatypes.CreditPolicy{
			EmploymentType:     effect.Profile.EmploymentType,
			AnnualInterestRate: terms.AnnualInterestRate,
			MaxTenureMonths:    terms.MaxTenureMonths,
			MaxDebtBurdenRatio: terms.MaxDebtBurdenRatio,
			MinMonthlyIncome:   terms.MinMonthlyIncomeEGP,
			MaxVehicleAgeYears: terms.MaxVehicleAgeYears,
			IsFallback:         true,
		}
		tools.ApplyEligibilityRules(policy, effect.Profile, effect.VehicleAgeYears)
	}
	state.Policy = policy

	if !policy.Eligible {
		state.Phase = datatypes.PhaseIneligible
		state.PendingGate = datatypes.GateNone
		return ineligibleReply(policy.RejectionReason)
	}

	tenure := min(policy.MaxTenureMonths, defaultMaxTenureMonths)
	quote, err := tools.ComputeQuote(effect.VehiclePrice, policy.AnnualInterestRate, tenure)
	if err != nil {
		state.Phase = datatypes.PhaseIneligible
		policy.Eligible = false
		policy.RejectionReason = "the listing price could not be financed"
		return ineligibleReply(policy.RejectionReason)
	}

	dbr := tools.DebtBurdenRatio(quote.MonthlyInstallment, effect.Profile.MonthlyIncome)
	if policy.MaxDebtBurdenRatio > 0 && dbr > policy.MaxDebtBurdenRatio {
		state.Phase = datatypes.PhaseIneligible
		policy.Eligible = false
		policy.RejectionReason = fmt.Sprintf(
			"the monthly installment of %.0f EGP would be %.0f%% of your income, above the allowed %.0f%%",
			quote.MonthlyInstallment, dbr*100, policy.MaxDebtBurdenRatio*100)
		return ineligibleReply(policy.RejectionReason)
	}

	quote.EstimateOnly = policy.IsFallback
	state.Quote = quote
	state.PendingGate = datatypes.GateSubmissionConfirmation
	return quoteReply(state.SelectedVehicle, quote)
}

func (e *Engine) applySubmitResult(state *datatypes.SessionState, result EffectResult) string {
	if result.Err != nil {
		// PendingRequestID survives so a retry reuses the same id.
		return submitFailedReply
	}
	state.RequestID = state.PendingRequestID
	state.PendingRequestID = ""
	state.Phase = datatypes.PhaseCompleted
	state.PendingGate = datatypes.GateNone
	return submittedReply(state.RequestID)
}

func (e *Engine) applyStatusResult(result EffectResult) string {
	if result.Err != nil {
		if errors.Is(result.Err, ledger.ErrRecordNotFound) {
			return "I couldn't find your application record yet. It may still be processing; try again shortly."
		}
		return "I couldn't reach the application records right now. Please try again in a moment."
	}
	return statusReply(result.Record)
}

// buildRecord assembles the ledger record for the current session.
func (e *Engine) buildRecord(state *datatypes.SessionState) *datatypes.ApplicationRecord {
	return &datatypes.ApplicationRecord{
		RequestID:      state.PendingRequestID,
		SessionID:      state.SessionID,
		Customer:       *state.Customer,
		Vehicle:        *state.SelectedVehicle,
		Quote:          *state.Quote,
		MonthlyIncome:  *state.MonthlyIncome,
		EmploymentType: state.EmploymentType,
		Status:         datatypes.StatusPendingReview,
		CreatedAt:      e.now().UnixMilli(),
	}
}

// phasePrompt is the re-engagement question for the current phase.
func phasePrompt(state *datatypes.SessionState) string {
	switch state.Phase {
	case datatypes.PhaseAwaitingSearchConfirmation:
		return "shall I search for " + state.SearchCriteria.Summary() + "?"
	case datatypes.PhaseAwaitingSelection:
		return "which listing would you like to finance?"
	case datatypes.PhaseProfiling:
		return "what is your monthly income and employment type?"
	case datatypes.PhaseQuoting:
		return "could you share your contact details to continue?"
	case datatypes.PhaseAwaitingSubmissionConfirmation:
		return "shall I submit your pre-approval request?"
	default:
		return "what car are you looking for?"
	}
}
