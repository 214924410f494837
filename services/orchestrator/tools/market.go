// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools provides the capability adapters the state machine depends
// on: live market search, credit policy lookup, and the quote calculator.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var marketTracer = otel.Tracer("autofin.tools.market")

// ErrSearchUnavailable is returned when the search provider cannot be
// reached or answers with a non-success status. Zero results is NOT an
// error; it is a valid empty outcome.
var ErrSearchUnavailable = errors.New("market search unavailable")

// MarketSearcher finds live vehicle listings matching structured criteria.
//
// Repeated calls with identical criteria may return different live listings;
// callers must not assume ordering or repeatability across calls.
type MarketSearcher interface {
	Search(ctx context.Context, criteria datatypes.SearchCriteria) ([]datatypes.Vehicle, error)
}

// HTTPClient allows injecting mock HTTP clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// MarketplaceSearcher queries a Tavily-style web search API restricted to
// Egyptian car marketplaces and parses listings out of the result snippets.
type MarketplaceSearcher struct {
	httpClient HTTPClient
	endpoint   string
	apiKey     string
	maxResults int
}

type marketSearchRequest struct {
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

type marketSearchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// NewMarketplaceSearcher builds a searcher against the given search API
// endpoint. httpClient may be nil, in which case a client with a 30s timeout
// is used.
func NewMarketplaceSearcher(endpoint, apiKey string, httpClient HTTPClient) *MarketplaceSearcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &MarketplaceSearcher{
		httpClient: httpClient,
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		apiKey:     apiKey,
		maxResults: 5,
	}
}

// Search implements MarketSearcher.
func (m *MarketplaceSearcher) Search(ctx context.Context, criteria datatypes.SearchCriteria) ([]datatypes.Vehicle, error) {
	ctx, span := marketTracer.Start(ctx, "MarketplaceSearcher.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("make", criteria.Make),
		attribute.String("model", criteria.Model),
	)

	payload := marketSearchRequest{
		Query:          buildSearchQuery(criteria),
		SearchDepth:    "advanced",
		MaxResults:     m.maxResults * 2, // fetch extra, filtering discards some
		IncludeDomains: []string{"hatla2ee.com", "dubizzle.com.eg"},
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal the search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+"/search", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build the search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Market search request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: reading response: %v", ErrSearchUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, resp.Status)
		slog.Error("Market search returned non-OK status", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrSearchUnavailable, resp.StatusCode)
	}

	var searchResp marketSearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: parsing response: %v", ErrSearchUnavailable, err)
	}

	vehicles := make([]datatypes.Vehicle, 0, m.maxResults)
	for _, result := range searchResp.Results {
		combined := result.Title + " " + result.Content

		price, ok := parsePrice(combined)
		if !ok {
			continue // listing without a detectable price is useless downstream
		}
		if criteria.PriceCap > 0 && price > criteria.PriceCap {
			continue
		}

		year, _ := parseYear(combined)
		if year > 0 {
			if criteria.YearMin > 0 && year < criteria.YearMin {
				continue
			}
			if criteria.YearMax > 0 && year > criteria.YearMax {
				continue
			}
		}
		if year == 0 {
			year = criteria.YearMin
		}

		vehicle := datatypes.Vehicle{
			Make:       criteria.Make,
			Model:      criteria.Model,
			Year:       year,
			Price:      price,
			SourceURL:  result.URL,
			SourceSite: sourceSiteFromURL(result.URL),
		}
		if mileage, ok := parseMileage(combined); ok {
			vehicle.Mileage = &mileage
		}
		vehicles = append(vehicles, vehicle)
		if len(vehicles) >= m.maxResults {
			break
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(vehicles)))
	slog.Info("Market search completed", "query", payload.Query, "results", len(vehicles))
	return vehicles, nil
}

// buildSearchQuery renders criteria into a marketplace-targeted query string.
func buildSearchQuery(criteria datatypes.SearchCriteria) string {
	var parts []string
	if criteria.Make != "" {
		parts = append(parts, criteria.Make)
	}
	if criteria.Model != "" {
		parts = append(parts, criteria.Model)
	}
	switch {
	case criteria.YearMin > 0 && criteria.YearMax > 0 && criteria.YearMin != criteria.YearMax:
		parts = append(parts, fmt.Sprintf("%d-%d", criteria.YearMin, criteria.YearMax))
	case criteria.YearMin > 0:
		parts = append(parts, strconv.Itoa(criteria.YearMin))
	case criteria.YearMax > 0:
		parts = append(parts, strconv.Itoa(criteria.YearMax))
	}
	parts = append(parts, "price in Egypt")
	return strings.Join(parts, " ")
}

var (
	priceWithCurrencyRe = regexp.MustCompile(`(?i)([\d,]+(?:\.\d+)?)\s*(?:EGP|LE|جنيه)`)
	currencyFirstRe     = regexp.MustCompile(`(?i)(?:EGP|جنيه)\s*([\d,]+(?:\.\d+)?)`)
	millionRe           = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:million|مليون)`)
	bareNumberRe        = regexp.MustCompile(`\d{4,}`)
	yearRe              = regexp.MustCompile(`\b(20[0-3]\d)\b`)
	mileageKmRe         = regexp.MustCompile(`(?i)([\d,]+)\s*(?:km|كم|kilometer)`)
)

// parsePrice extracts a listing price in EGP from free text. Handles
// "1,500,000 EGP", "EGP 1500000" and "1.5 million"; falls back to the first
// bare number inside a plausible car-price band.
func parsePrice(text string) (float64, bool) {
	if match := millionRe.FindStringSubmatch(text); match != nil {
		value, err := strconv.ParseFloat(match[1], 64)
		if err == nil {
			return value * 1_000_000, true
		}
	}
	for _, re := range []*regexp.Regexp{priceWithCurrencyRe, currencyFirstRe} {
		if match := re.FindStringSubmatch(text); match != nil {
			value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
			if err == nil && value > 0 {
				return value, true
			}
		}
	}
	for _, raw := range bareNumberRe.FindAllString(strings.ReplaceAll(text, ",", ""), -1) {
		value, err := strconv.ParseFloat(raw, 64)
		if err == nil && value >= 50_000 && value <= 10_000_000 {
			return value, true
		}
	}
	return 0, false
}

// parseYear extracts a model year between 2000 and 2039.
func parseYear(text string) (int, bool) {
	if match := yearRe.FindStringSubmatch(text); match != nil {
		year, err := strconv.Atoi(match[1])
		if err == nil {
			return year, true
		}
	}
	return 0, false
}

// parseMileage extracts an odometer reading in km.
func parseMileage(text string) (int, bool) {
	if match := mileageKmRe.FindStringSubmatch(text); match != nil {
		value, err := strconv.Atoi(strings.ReplaceAll(match[1], ",", ""))
		if err == nil && value > 0 {
			return value, true
		}
	}
	return 0, false
}

func sourceSiteFromURL(url string) string {
	switch {
	case strings.Contains(strings.ToLower(url), "hatla2ee"):
		return "Hatla2ee"
	case strings.Contains(strings.ToLower(url), "dubizzle"):
		return "Dubizzle"
	default:
		return ""
	}
}
