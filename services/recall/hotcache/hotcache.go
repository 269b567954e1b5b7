// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package hotcache provides the exact-key answer cache sitting in front of
// similarity search. Entries are keyed by the verbatim question text and
// expire after a TTL; a cache failure is never fatal to a request — callers
// log it and fall through to the slower path.
package hotcache

import (
	"context"
	"time"
)

// DefaultTTL is how long a cached answer stays valid for exact repeats.
const DefaultTTL = time.Hour

// HotCache is an expiring key/value store for verbatim question -> answer.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type HotCache interface {
	// Get returns the cached answer for key and whether it was present.
	// A missing or expired entry is (_, false, nil); the error is reserved
	// for backend failures.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key for ttl. A ttl <= 0 uses DefaultTTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}
