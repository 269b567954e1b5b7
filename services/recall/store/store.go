// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides the durable, append-only log of resolved
// question/answer pairs behind the Recall resolver.
//
// The Store interface abstracts the backend (flat JSON file, embedded
// BadgerDB, or a managed Weaviate instance) so the resolver never touches
// persistence details. The log is the source of truth; the hot cache in the
// hotcache package is a derived accelerator that can always be rebuilt empty.
package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound is returned by AttachFingerprint when no record has the
	// given ID.
	ErrNotFound = errors.New("store: record not found")

	// ErrEmptyRecord is returned by Append when question or answer is empty.
	// Records are validated at the boundary so the log invariant (both fields
	// non-empty after creation) holds for every persisted entry.
	ErrEmptyRecord = errors.New("store: question and answer must be non-empty")
)

// QARecord is one resolved question/answer pair.
//
// # Description
//
// Records are append-only: once persisted they are never mutated, with one
// exception — a missing Fingerprint may be attached later (idempotent
// backfill). The Fingerprint is the embedding vector of Question as returned
// by the embedding provider, stored unchanged (normalization happens at
// comparison time in the match package).
type QARecord struct {
	// ID is a UUID assigned at append time. It is the stable key used by the
	// Badger and Weaviate backends and by fingerprint backfill.
	ID string `json:"id"`

	// Question is the original text, as submitted. Never empty.
	Question string `json:"question"`

	// Answer is the generated or reused text. Never empty.
	Answer string `json:"answer"`

	// Timestamp is the creation time, serialized as RFC 3339.
	Timestamp time.Time `json:"timestamp"`

	// Fingerprint is the fixed-length embedding vector of Question.
	// Nil until computed; immutable once set.
	Fingerprint []float32 `json:"fingerprint,omitempty"`
}

// HasFingerprint reports whether the record carries an embedding vector.
func (r *QARecord) HasFingerprint() bool {
	return len(r.Fingerprint) > 0
}

// Store is the durable record of prior question/answer pairs.
//
// # Description
//
// Implementations maintain a totally ordered sequence of QARecords by
// insertion. No record is ever merged or deleted except by Clear, which
// empties the store atomically. Append must be safe under concurrent calls
// (serialize writes) to preserve the total order.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Append adds a record to the end of the log. Returns ErrEmptyRecord if
	// question or answer is empty.
	Append(ctx context.Context, rec QARecord) error

	// List returns every record in insertion order. The returned slice is a
	// copy; callers may mutate it freely.
	List(ctx context.Context) ([]QARecord, error)

	// Clear empties the store atomically.
	Clear(ctx context.Context) error

	// AttachFingerprint sets the fingerprint of the record with the given ID
	// if — and only if — it has none. Attaching to a record that already has
	// a fingerprint is a no-op, which makes backfill idempotent.
	// Returns ErrNotFound if the ID is unknown.
	AttachFingerprint(ctx context.Context, id string, fingerprint []float32) error
}
