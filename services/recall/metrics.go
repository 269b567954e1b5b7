// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recall

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for the Answer Resolver
// =============================================================================

var (
	// askRequestsTotal counts /ask requests by outcome.
	// Labels: outcome (hot_hit, fingerprint_hit, lexical_hit, generated, error)
	askRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recall",
		Subsystem: "resolver",
		Name:      "ask_requests_total",
		Help:      "Total /ask requests by resolution outcome",
	}, []string{"outcome"})

	// askLatencySeconds measures end-to-end /ask resolution latency.
	// Labels: outcome
	askLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "recall",
		Subsystem: "resolver",
		Name:      "ask_latency_seconds",
		Help:      "End-to-end answer resolution latency by outcome",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"outcome"})

	// degradationsTotal counts soft failures the resolver absorbed.
	// Labels: dependency (embedding, hotcache, store)
	degradationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recall",
		Subsystem: "resolver",
		Name:      "degradations_total",
		Help:      "Soft dependency failures absorbed without failing the request",
	}, []string{"dependency"})

	// matchScore observes the best-candidate score per strategy, accepted or not.
	// Labels: strategy (fingerprint, lexical)
	matchScore = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "recall",
		Subsystem: "resolver",
		Name:      "match_score",
		Help:      "Best-candidate similarity or distance score by strategy",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"strategy"})

	// generationCallsTotal counts generation-provider invocations by status.
	// Labels: status (ok, error)
	generationCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recall",
		Subsystem: "resolver",
		Name:      "generation_calls_total",
		Help:      "Generation provider invocations by status",
	}, []string{"status"})
)

// recordOutcome records a completed /ask resolution.
func recordOutcome(outcome string, durationSec float64) {
	askRequestsTotal.WithLabelValues(outcome).Inc()
	askLatencySeconds.WithLabelValues(outcome).Observe(durationSec)
}

// recordDegradation records a soft dependency failure (logged, not fatal).
func recordDegradation(dependency string) {
	degradationsTotal.WithLabelValues(dependency).Inc()
}
