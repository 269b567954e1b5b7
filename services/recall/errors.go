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

import "errors"

// Sentinel errors classifying the failure modes of an /ask request. Handlers
// map these to HTTP statuses with errors.Is; everything else is a 500.
var (
	// ErrInvalidInput marks a malformed request (empty or missing question).
	// Requests failing with this error have no side effects.
	ErrInvalidInput = errors.New("recall: invalid input")

	// ErrEmbeddingUnavailable marks an embedding-provider failure. Never
	// surfaced to clients: the resolver degrades to lexical matching.
	ErrEmbeddingUnavailable = errors.New("recall: embedding provider unavailable")

	// ErrCacheUnavailable marks a hot-cache backend failure. Never surfaced
	// to clients: the resolver logs it and proceeds as a miss.
	ErrCacheUnavailable = errors.New("recall: hot cache unavailable")

	// ErrGenerationUnavailable marks a generation-provider failure on a
	// question no cached or stored answer could serve. Request-fatal: 502.
	ErrGenerationUnavailable = errors.New("recall: generation provider unavailable")
)
