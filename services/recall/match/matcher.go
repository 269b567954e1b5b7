// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package match scores an incoming question against the historical record
// log and decides whether a prior answer can be reused.
//
// Two strategies implement the Matcher interface:
//
//   - FingerprintMatcher: cosine similarity over embedding vectors.
//     Higher is better; accept when score >= threshold (default 0.8).
//   - LexicalMatcher: normalized edit distance over raw question text, used
//     when embeddings are structurally unavailable. LOWER is better; accept
//     when score <= threshold (default 0.4). Note the inverted scale — a
//     0.95 is a near-certain reuse for cosine and a near-certain miss for
//     lexical. Keep the two thresholds apart in configuration and code.
//
// Both strategies scan the whole corpus per query — O(n) with no index.
// This is a known scaling limit, acceptable for a corpus bounded in the low
// thousands; replace the scan, not the interface, if the corpus outgrows it.
package match

import (
	"context"

	"github.com/AleutianAI/recall/services/recall/store"
)

// Query carries the signals a strategy may match on. Fingerprint is nil when
// the embedding provider was unavailable for this request.
type Query struct {
	Text        string
	Fingerprint []float32
}

// Matcher finds the best-matching historical record for a query.
//
// # Description
//
// Match scans the corpus in insertion order and returns the first record
// reaching the best score (stable tie-break, no secondary criterion). The
// boolean result reports acceptance against the strategy's threshold; a best
// candidate below threshold is returned with ok=false so callers can log the
// near miss.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Matcher interface {
	// Name identifies the strategy in logs and metrics ("fingerprint", "lexical").
	Name() string

	// Match returns the best candidate, its score, and whether the score
	// clears the strategy's acceptance threshold. best is nil only when no
	// record was scorable at all.
	Match(ctx context.Context, q Query, corpus []store.QARecord) (best *store.QARecord, score float64, ok bool)
}
