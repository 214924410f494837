// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"fmt"
	"strings"

	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
)

const welcomeReply = "Welcome! I can help you find a car on the Egyptian market and check your loan pre-approval. " +
	"Tell me what you are looking for, for example a make, model, year, or budget."

const askCriteriaReply = "I didn't catch any car preferences there. " +
	"Tell me a make, model, year, or budget and I'll search the market for you."

const askProfileReply = "Great choice. To check your financing terms I need two things: " +
	"your monthly income in EGP and your employment type (salaried, self-employed, or corporate)."

const searchFailedReply = "I couldn't reach the marketplace search right now. " +
	"Say \"yes\" to try again, or adjust your criteria."

const submitFailedReply = "I couldn't record your application just now. " +
	"Nothing was lost; say \"yes\" to try submitting again."

const restartReply = "No problem, let's start fresh. " +
	"Tell me what car you are looking for."

func confirmSearchReply(criteria datatypes.SearchCriteria) string {
	return fmt.Sprintf("Got it, you're looking for: %s. Shall I search the market now?", criteria.Summary())
}

func resultsReply(results []datatypes.Vehicle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I found %d matching listings:\n", len(results))
	for i, v := range results {
		fmt.Fprintf(&b, "%d. %s, %.0f EGP", i+1, v.Label(), v.Price)
		if v.Mileage != nil {
			fmt.Fprintf(&b, ", %d km", *v.Mileage)
		}
		if v.SourceSite != "" {
			fmt.Fprintf(&b, " (%s)", v.SourceSite)
		}
		b.WriteString("\n")
	}
	b.WriteString("Which one would you like to finance? You can pick by number.")
	return b.String()
}

func noResultsReply(criteria datatypes.SearchCriteria) string {
	return fmt.Sprintf("I couldn't find any listings for %s. "+
		"Try loosening the criteria, for example a wider year range or a higher budget.",
		criteria.Summary())
}

func disambiguationReply(results []datatypes.Vehicle) string {
	return fmt.Sprintf("That matches more than one of the %d listings. "+
		"Could you pick one by its number?", len(results))
}

func askIncomeReply() string {
	return "What is your monthly income in EGP?"
}

func askEmploymentReply() string {
	return "And what is your employment type: salaried, self-employed, or corporate?"
}

func quoteReply(vehicle *datatypes.Vehicle, quote *datatypes.FinancialQuote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here is your financing quote for the %s:\n", vehicle.Label())
	fmt.Fprintf(&b, "- Price: %.0f EGP\n", quote.Principal)
	fmt.Fprintf(&b, "- Interest rate: %.1f%% per year\n", quote.AnnualInterestRate*100)
	fmt.Fprintf(&b, "- Tenure: %d months\n", quote.TenureMonths)
	fmt.Fprintf(&b, "- Monthly installment: %.0f EGP\n", quote.MonthlyInstallment)
	fmt.Fprintf(&b, "- Total interest: %.0f EGP\n", quote.TotalInterest)
	if quote.EstimateOnly {
		b.WriteString("Note: this is an estimate based on standard terms; final terms come with the bank's review.\n")
	}
	b.WriteString("To submit your pre-approval request I need your full name, email, and phone number.")
	return b.String()
}

func askMissingContactReply(info *datatypes.CustomerInfo) string {
	var missing []string
	if info == nil || info.FullName == "" {
		missing = append(missing, "full name")
	}
	if info == nil || info.Email == "" {
		missing = append(missing, "email")
	}
	if info == nil || info.Phone == "" {
		missing = append(missing, "phone number")
	}
	if len(missing) == 0 {
		return "Could you double-check your contact details?"
	}
	return fmt.Sprintf("Thanks. I still need your %s.", strings.Join(missing, " and "))
}

func confirmSubmissionReply(state *datatypes.SessionState) string {
	var b strings.Builder
	b.WriteString("Here is your application summary:\n")
	fmt.Fprintf(&b, "- Applicant: %s (%s, %s)\n",
		state.Customer.FullName, state.Customer.Email, state.Customer.Phone)
	fmt.Fprintf(&b, "- Vehicle: %s, %.0f EGP\n", state.SelectedVehicle.Label(), state.SelectedVehicle.Price)
	fmt.Fprintf(&b, "- Monthly installment: %.0f EGP over %d months\n",
		state.Quote.MonthlyInstallment, state.Quote.TenureMonths)
	b.WriteString("Shall I submit this pre-approval request?")
	return b.String()
}

func submittedReply(requestID string) string {
	return fmt.Sprintf("Your pre-approval request has been submitted. "+
		"Your request id is %s; keep it to check the status later.", requestID)
}

func ineligibleReply(reason string) string {
	return fmt.Sprintf("Unfortunately this financing doesn't qualify: %s. "+
		"You can pick a different vehicle or say \"start over\".", reason)
}

func statusReply(record *datatypes.ApplicationRecord) string {
	label := map[datatypes.ApplicationStatus]string{
		datatypes.StatusPendingReview:     "pending review",
		datatypes.StatusUnderReview:       "under review",
		datatypes.StatusApproved:          "approved",
		datatypes.StatusRejected:          "rejected",
		datatypes.StatusDocumentsRequired: "waiting for documents",
	}[record.Status]
	if label == "" {
		label = string(record.Status)
	}
	return fmt.Sprintf("Your application %s is currently %s.", record.RequestID, label)
}
