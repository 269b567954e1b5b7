// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package match

import (
	"context"
	"math"

	"github.com/AleutianAI/recall/services/recall/store"
)

// DefaultFingerprintThreshold is the minimum cosine similarity at which a
// stored answer is considered semantically equivalent to the query.
const DefaultFingerprintThreshold = 0.8

// FingerprintMatcher compares embedding vectors by cosine similarity.
type FingerprintMatcher struct {
	threshold float64
}

var _ Matcher = (*FingerprintMatcher)(nil)

// NewFingerprintMatcher returns a matcher accepting candidates whose cosine
// similarity to the query fingerprint is >= threshold. A threshold <= 0
// falls back to DefaultFingerprintThreshold.
func NewFingerprintMatcher(threshold float64) *FingerprintMatcher {
	if threshold <= 0 {
		threshold = DefaultFingerprintThreshold
	}
	return &FingerprintMatcher{threshold: threshold}
}

// Name implements Matcher.
func (m *FingerprintMatcher) Name() string { return "fingerprint" }

// Match implements Matcher.
//
// Records without a fingerprint, or with a fingerprint of a different
// dimension than the query's, are skipped rather than scored: old records
// written before a model change must never win on garbage arithmetic.
// Ties keep the earliest record scanned.
func (m *FingerprintMatcher) Match(ctx context.Context, q Query, corpus []store.QARecord) (*store.QARecord, float64, bool) {
	if len(q.Fingerprint) == 0 {
		return nil, 0, false
	}

	var best *store.QARecord
	bestScore := math.Inf(-1)

	for i := range corpus {
		rec := &corpus[i]
		if len(rec.Fingerprint) != len(q.Fingerprint) {
			continue
		}
		score := CosineSimilarity(q.Fingerprint, rec.Fingerprint)
		if score > bestScore {
			best = rec
			bestScore = score
		}
	}

	if best == nil {
		return nil, 0, false
	}
	return best, bestScore, bestScore >= m.threshold
}

// CosineSimilarity returns the cosine of the angle between a and b in
// [-1, 1]. Accumulation is in float64 to keep precision over long vectors.
// If either vector has zero magnitude the result is 0 (no meaningful
// direction, so no similarity claim).
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
