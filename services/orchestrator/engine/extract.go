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
	"regexp"
	"strconv"
	"strings"

	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
)

// knownMakes are the marques commonly listed on Egyptian marketplaces.
var knownMakes = []string{
	"toyota", "hyundai", "kia", "nissan", "chevrolet", "renault", "peugeot",
	"skoda", "fiat", "mitsubishi", "suzuki", "honda", "mg", "byd", "chery",
	"geely", "haval", "jeep", "opel", "citroen", "seat", "mazda", "bmw",
	"mercedes", "audi", "volkswagen",
}

// modelToMake lets a bare model name imply its make.
var modelToMake = map[string]string{
	"corolla":  "Toyota",
	"yaris":    "Toyota",
	"tucson":   "Hyundai",
	"elantra":  "Hyundai",
	"accent":   "Hyundai",
	"creta":    "Hyundai",
	"sportage": "Kia",
	"cerato":   "Kia",
	"picanto":  "Kia",
	"sunny":    "Nissan",
	"sentra":   "Nissan",
	"qashqai":  "Nissan",
	"octavia":  "Skoda",
	"logan":    "Renault",
	"megane":   "Renault",
	"lancer":   "Mitsubishi",
	"civic":    "Honda",
	"tipo":     "Fiat",
	"tiggo":    "Chery",
	"zs":       "MG",
}

var (
	yearRangeRe  = regexp.MustCompile(`\b(20[0-3]\d)\s*(?:-|–|to|until)\s*(20[0-3]\d)\b`)
	singleYearRe = regexp.MustCompile(`\b(20[0-3]\d)\b`)

	budgetRe = regexp.MustCompile(`(?i)(?:under|below|less than|max(?:imum)?|budget(?: of| is)?|up to|around)\s*([\d,.]+)\s*(million|m\b|k\b|thousand|ألف|مليون)?`)

	incomeRe = regexp.MustCompile(`(?i)(?:income|salary|earn|make|paid|مرتبي|دخلي)\D{0,20}?([\d,.]+)\s*(k\b|thousand|ألف)?`)

	emailRe      = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe      = regexp.MustCompile(`(?:\+?2)?(01[0-9]{9})\b`)
	nationalIDRe = regexp.MustCompile(`\b([23][0-9]{13})\b`)
	nameRe       = regexp.MustCompile(`(?:[Mm]y name is|I am|I'm|[Tt]his is|اسمي)\s+([A-Z][a-zA-Z'\-]+(?:\s+[A-Z][a-zA-Z'\-]+){1,3})`)

	requestIDRe = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)

	ordinals = map[string]int{
		"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
		"الاول": 1, "التاني": 2, "التالت": 3,
	}
	selectionIndexRe = regexp.MustCompile(`(?i)(?:^|\b(?:option|number|car|#)\s*)([1-9])\b`)
)

// extractCriteria pulls vehicle search criteria out of free text. Returns
// false when nothing recognizable was found.
func extractCriteria(text string) (datatypes.SearchCriteria, bool) {
	lower := strings.ToLower(text)
	var criteria datatypes.SearchCriteria

	for _, marque := range knownMakes {
		if containsWord(lower, marque) {
			criteria.Make = titleCase(marque)
			break
		}
	}
	for model, marque := range modelToMake {
		if containsWord(lower, model) {
			criteria.Model = titleCase(model)
			if criteria.Make == "" {
				criteria.Make = marque
			}
			break
		}
	}

	// Budget first: its number can contain a year-like "2,000,000" but the
	// matched span is removed before year detection runs.
	yearText := text
	if match := budgetRe.FindStringSubmatchIndex(text); match != nil {
		raw := text[match[2]:match[3]]
		unit := ""
		if match[4] >= 0 {
			unit = strings.ToLower(text[match[4]:match[5]])
		}
		if value, ok := parseAmount(raw, unit); ok && value >= 50_000 && value <= 20_000_000 {
			criteria.PriceCap = value
		}
		yearText = text[:match[0]] + text[match[1]:]
	}

	if match := yearRangeRe.FindStringSubmatch(yearText); match != nil {
		lo, _ := strconv.Atoi(match[1])
		hi, _ := strconv.Atoi(match[2])
		if lo > hi {
			lo, hi = hi, lo
		}
		criteria.YearMin, criteria.YearMax = lo, hi
	} else if match := singleYearRe.FindStringSubmatch(yearText); match != nil {
		year, _ := strconv.Atoi(match[1])
		criteria.YearMin, criteria.YearMax = year, year
	}

	found := criteria.Make != "" || criteria.Model != "" ||
		criteria.YearMin > 0 || criteria.PriceCap > 0
	return criteria, found
}

// mergeCriteria overlays newly extracted fields onto the existing criteria.
// Absent fields in next never erase earlier answers.
func mergeCriteria(base *datatypes.SearchCriteria, next datatypes.SearchCriteria) datatypes.SearchCriteria {
	merged := next
	if base != nil {
		if merged.Make == "" {
			merged.Make = base.Make
		}
		if merged.Model == "" && strings.EqualFold(merged.Make, base.Make) {
			merged.Model = base.Model
		}
		if merged.YearMin == 0 {
			merged.YearMin = base.YearMin
		}
		if merged.YearMax == 0 {
			merged.YearMax = base.YearMax
		}
		if merged.PriceCap == 0 {
			merged.PriceCap = base.PriceCap
		}
	}
	return merged
}

// extractIncome pulls a monthly income in EGP. Values with a thousands
// suffix are scaled; anything outside the 1,000..500,000 band is rejected as
// noise.
func extractIncome(text string) (float64, bool) {
	match := incomeRe.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	unit := ""
	if len(match) > 2 {
		unit = strings.ToLower(strings.TrimSpace(match[2]))
	}
	value, ok := parseAmount(match[1], unit)
	if !ok || value < 1_000 || value > 500_000 {
		return 0, false
	}
	return value, true
}

// extractRequestID pulls an explicit application request id (a UUID) out of
// a status query, so an application can be checked from any session.
func extractRequestID(text string) (string, bool) {
	match := requestIDRe.FindString(text)
	if match == "" {
		return "", false
	}
	return strings.ToLower(match), true
}

// extractEmployment maps employment phrasings onto the credit categories.
func extractEmployment(text string) (datatypes.EmploymentType, bool) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "self-employed") || strings.Contains(lower, "self employed") ||
		strings.Contains(lower, "freelanc") || strings.Contains(lower, "own business") ||
		strings.Contains(lower, "my business") || strings.Contains(lower, "اعمال حرة"):
		return datatypes.EmploymentSelfEmployed, true
	case strings.Contains(lower, "corporate") || strings.Contains(lower, "multinational") ||
		strings.Contains(lower, "executive"):
		return datatypes.EmploymentCorporate, true
	case strings.Contains(lower, "salaried") || strings.Contains(lower, "employee") ||
		strings.Contains(lower, "employed at") || strings.Contains(lower, "work at") ||
		strings.Contains(lower, "work for") || strings.Contains(lower, "my salary") ||
		strings.Contains(lower, "موظف"):
		return datatypes.EmploymentSalaried, true
	case strings.Contains(lower, "retired") || strings.Contains(lower, "unemployed") ||
		strings.Contains(lower, "student") || strings.Contains(lower, "pension"):
		return datatypes.EmploymentOther, true
	}
	return "", false
}

// extractSelection resolves which search result the user picked. ok is false
// when nothing matched; ambiguous is true when free text matched more than
// one listing.
func extractSelection(text string, results []datatypes.Vehicle) (index int, ambiguous, ok bool) {
	if len(results) == 0 {
		return 0, false, false
	}
	lower := strings.ToLower(strings.TrimSpace(text))

	if containsWord(lower, "last") {
		return len(results) - 1, false, true
	}
	for word, n := range ordinals {
		if strings.Contains(lower, word) && n <= len(results) {
			return n - 1, false, true
		}
	}
	if match := selectionIndexRe.FindStringSubmatch(lower); match != nil {
		n, _ := strconv.Atoi(match[1])
		if n >= 1 && n <= len(results) {
			return n - 1, false, true
		}
	}

	// Free text: match against year and model of each listing.
	var matches []int
	for i, vehicle := range results {
		year := strconv.Itoa(vehicle.Year)
		model := strings.ToLower(vehicle.Model)
		hit := false
		if year != "0" && strings.Contains(lower, year) {
			hit = true
		}
		if model != "" && strings.Contains(lower, model) {
			if strings.Contains(lower, year) || !containsAnyYear(lower) {
				hit = true
			} else {
				hit = false
			}
		}
		if hit {
			matches = append(matches, i)
		}
	}
	switch len(matches) {
	case 0:
		return 0, false, false
	case 1:
		return matches[0], false, true
	default:
		return 0, true, true
	}
}

// extractCustomer fills contact fields found in text into info, returning
// true when anything new was captured.
func extractCustomer(text string, info *datatypes.CustomerInfo) bool {
	captured := false
	if info.Email == "" {
		if match := emailRe.FindString(text); match != "" {
			info.Email = match
			captured = true
		}
	}
	if info.Phone == "" {
		if match := phoneRe.FindStringSubmatch(text); match != nil {
			info.Phone = match[1]
			captured = true
		}
	}
	if info.NationalID == "" {
		if match := nationalIDRe.FindStringSubmatch(text); match != nil {
			info.NationalID = match[1]
			captured = true
		}
	}
	if info.FullName == "" {
		if match := nameRe.FindStringSubmatch(text); match != nil {
			info.FullName = strings.TrimSpace(match[1])
			captured = true
		}
	}
	return captured
}

// overlayCustomer copies non-empty fields from next over base, letting a
// user correct details they already gave.
func overlayCustomer(base *datatypes.CustomerInfo, next datatypes.CustomerInfo) {
	if next.FullName != "" {
		base.FullName = next.FullName
	}
	if next.Email != "" {
		base.Email = next.Email
	}
	if next.Phone != "" {
		base.Phone = next.Phone
	}
	if next.NationalID != "" {
		base.NationalID = next.NationalID
	}
}

func parseAmount(raw, unit string) (float64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	cleaned = strings.TrimSuffix(cleaned, ".")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	switch unit {
	case "million", "m", "مليون":
		value *= 1_000_000
	case "k", "thousand", "ألف":
		value *= 1_000
	}
	return value, true
}

func containsWord(haystack, word string) bool {
	idx := strings.Index(haystack, word)
	for idx >= 0 {
		before := idx == 0 || !isWordChar(haystack[idx-1])
		afterIdx := idx + len(word)
		after := afterIdx >= len(haystack) || !isWordChar(haystack[afterIdx])
		if before && after {
			return true
		}
		next := strings.Index(haystack[idx+1:], word)
		if next < 0 {
			return false
		}
		idx += 1 + next
	}
	return false
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func containsAnyYear(text string) bool {
	return singleYearRe.MatchString(text)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	if s == "mg" || s == "byd" || s == "bmw" || s == "zs" {
		return strings.ToUpper(s)
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
