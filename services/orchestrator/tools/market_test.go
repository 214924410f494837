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
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHTTPClient returns canned responses for testing.
type mockHTTPClient struct {
	statusCode int
	body       string
	err        error
	lastReq    *http.Request
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func TestMarketplaceSearcher_Search(t *testing.T) {
	criteria := datatypes.SearchCriteria{
		Make:     "Hyundai",
		Model:    "Tucson",
		YearMin:  2020,
		PriceCap: 2000000,
	}

	t.Run("parses listings from results", func(t *testing.T) {
		mock := &mockHTTPClient{
			statusCode: http.StatusOK,
			body: `{"results": [
				{"title": "Hyundai Tucson 2022 for sale", "url": "https://eg.hatla2ee.com/en/car/123",
				 "content": "Excellent condition, 1,250,000 EGP, 45,000 km"},
				{"title": "Tucson 2021", "url": "https://www.dubizzle.com.eg/ad/456",
				 "content": "Price EGP 980000, one owner"}
			]}`,
		}
		searcher := NewMarketplaceSearcher("https://api.example.com", "test-key", mock)

		vehicles, err := searcher.Search(context.Background(), criteria)
		require.NoError(t, err)
		require.Len(t, vehicles, 2)

		assert.Equal(t, "Hyundai", vehicles[0].Make)
		assert.Equal(t, 2022, vehicles[0].Year)
		assert.Equal(t, 1250000.0, vehicles[0].Price)
		assert.Equal(t, "Hatla2ee", vehicles[0].SourceSite)
		require.NotNil(t, vehicles[0].Mileage)
		assert.Equal(t, 45000, *vehicles[0].Mileage)

		assert.Equal(t, 980000.0, vehicles[1].Price)
		assert.Equal(t, "Dubizzle", vehicles[1].SourceSite)

		assert.Equal(t, "Bearer test-key", mock.lastReq.Header.Get("Authorization"))
	})

	t.Run("filters by price cap and year", func(t *testing.T) {
		mock := &mockHTTPClient{
			statusCode: http.StatusOK,
			body: `{"results": [
				{"title": "Tucson 2022", "url": "https://eg.hatla2ee.com/a", "content": "2,500,000 EGP"},
				{"title": "Tucson 2018", "url": "https://eg.hatla2ee.com/b", "content": "800,000 EGP"},
				{"title": "Tucson 2021", "url": "https://eg.hatla2ee.com/c", "content": "1,100,000 EGP"}
			]}`,
		}
		searcher := NewMarketplaceSearcher("https://api.example.com", "k", mock)

		vehicles, err := searcher.Search(context.Background(), criteria)
		require.NoError(t, err)
		require.Len(t, vehicles, 1)
		assert.Equal(t, 2021, vehicles[0].Year)
	})

	t.Run("listings without a price are dropped", func(t *testing.T) {
		mock := &mockHTTPClient{
			statusCode: http.StatusOK,
			body: `{"results": [
				{"title": "Tucson 2022", "url": "https://eg.hatla2ee.com/a", "content": "call for price"}
			]}`,
		}
		searcher := NewMarketplaceSearcher("https://api.example.com", "k", mock)

		vehicles, err := searcher.Search(context.Background(), criteria)
		require.NoError(t, err)
		assert.Empty(t, vehicles)
	})

	t.Run("empty result set is not an error", func(t *testing.T) {
		mock := &mockHTTPClient{statusCode: http.StatusOK, body: `{"results": []}`}
		searcher := NewMarketplaceSearcher("https://api.example.com", "k", mock)

		vehicles, err := searcher.Search(context.Background(), criteria)
		require.NoError(t, err)
		assert.Empty(t, vehicles)
	})

	t.Run("non-OK status maps to ErrSearchUnavailable", func(t *testing.T) {
		mock := &mockHTTPClient{statusCode: http.StatusBadGateway, body: "upstream error"}
		searcher := NewMarketplaceSearcher("https://api.example.com", "k", mock)

		_, err := searcher.Search(context.Background(), criteria)
		assert.ErrorIs(t, err, ErrSearchUnavailable)
	})

	t.Run("transport failure maps to ErrSearchUnavailable", func(t *testing.T) {
		mock := &mockHTTPClient{err: errors.New("connection refused")}
		searcher := NewMarketplaceSearcher("https://api.example.com", "k", mock)

		_, err := searcher.Search(context.Background(), criteria)
		assert.ErrorIs(t, err, ErrSearchUnavailable)
	})
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		name string
		text string
		want float64
		ok   bool
	}{
		{"currency suffix with commas", "great car 1,500,000 EGP negotiable", 1500000, true},
		{"currency prefix", "asking EGP 750000", 750000, true},
		{"million shorthand", "price 1.5 million", 1500000, true},
		{"bare number in band", "selling for 650000 quickly", 650000, true},
		{"bare number below band", "driven 30000 total", 0, false},
		{"no number", "call for price", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parsePrice(tc.text)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestParseYear(t *testing.T) {
	year, ok := parseYear("Hyundai Tucson 2023 for sale")
	require.True(t, ok)
	assert.Equal(t, 2023, year)

	_, ok = parseYear("Hyundai Tucson for sale")
	assert.False(t, ok)

	// A 1990s year is outside the recognized band.
	_, ok = parseYear("classic 1998 model")
	assert.False(t, ok)
}

func TestBuildSearchQuery(t *testing.T) {
	q := buildSearchQuery(datatypes.SearchCriteria{Make: "Kia", Model: "Sportage", YearMin: 2021, YearMax: 2023})
	assert.Equal(t, "Kia Sportage 2021-2023 price in Egypt", q)

	q = buildSearchQuery(datatypes.SearchCriteria{Make: "Kia", YearMin: 2022, YearMax: 2022})
	assert.Equal(t, "Kia 2022 price in Egypt", q)
}
