// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability exposes Prometheus metrics for the orchestrator.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "autofin"

var (
	// TurnsTotal counts processed conversation turns by resulting phase.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns processed, labeled by resulting phase.",
		},
		[]string{"phase"},
	)

	// ToolCallsTotal counts side effects executed on behalf of turns.
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Side effects executed, labeled by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// SubmissionsTotal counts finalized application submissions.
	SubmissionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Applications successfully recorded in the ledger.",
		},
	)

	// VersionConflictsTotal counts optimistic-concurrency retries.
	VersionConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_conflicts_total",
			Help:      "State save rejections due to concurrent writers.",
		},
	)

	// TurnDuration observes end-to-end turn handling latency.
	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn handling duration.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
