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
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/AleutianAI/recall/services/recall/store"
)

// DefaultLexicalThreshold is the maximum normalized edit distance at which
// two questions are considered duplicates. Lexical scores are distances:
// LOWER is better, and acceptance is score <= threshold — the opposite
// polarity of the fingerprint matcher.
const DefaultLexicalThreshold = 0.4

// LexicalMatcher compares raw question text by normalized Levenshtein
// distance. It is the degraded-mode strategy used when the embedding
// provider is unreachable, so it depends on nothing but the two strings.
type LexicalMatcher struct {
	threshold float64
}

var _ Matcher = (*LexicalMatcher)(nil)

// NewLexicalMatcher returns a matcher accepting candidates whose normalized
// edit distance to the query text is <= threshold. A threshold <= 0 falls
// back to DefaultLexicalThreshold.
func NewLexicalMatcher(threshold float64) *LexicalMatcher {
	if threshold <= 0 {
		threshold = DefaultLexicalThreshold
	}
	return &LexicalMatcher{threshold: threshold}
}

// Name implements Matcher.
func (m *LexicalMatcher) Name() string { return "lexical" }

// Match implements Matcher. Ties keep the earliest record scanned.
func (m *LexicalMatcher) Match(ctx context.Context, q Query, corpus []store.QARecord) (*store.QARecord, float64, bool) {
	text := normalizeText(q.Text)
	if text == "" || len(corpus) == 0 {
		return nil, 0, false
	}

	var best *store.QARecord
	bestScore := math.Inf(1)

	for i := range corpus {
		rec := &corpus[i]
		score := NormalizedEditDistance(text, normalizeText(rec.Question))
		if score < bestScore {
			best = rec
			bestScore = score
		}
	}

	if best == nil {
		return nil, 0, false
	}
	return best, bestScore, bestScore <= m.threshold
}

// NormalizedEditDistance returns the Levenshtein distance between a and b
// divided by the length in runes of the longer string, yielding a value in
// [0, 1] where 0 means identical. Two empty strings are identical (0).
func NormalizedEditDistance(a, b string) float64 {
	if a == b {
		return 0
	}
	longest := len([]rune(a))
	if lb := len([]rune(b)); lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	return float64(levenshtein.ComputeDistance(a, b)) / float64(longest)
}

// normalizeText lower-cases and collapses surrounding whitespace so that
// trivial formatting differences don't count as edits.
func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
