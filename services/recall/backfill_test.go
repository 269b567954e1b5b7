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
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/recall/services/recall/store"
)

// flakyEmbedder fails on specific questions to exercise partial failure.
type flakyEmbedder struct {
	mu      sync.Mutex
	failFor map[string]bool
}

func (f *flakyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[text] {
		return nil, errors.New("embed failed")
	}
	return []float32{0.1, 0.2}, nil
}

func TestBackfiller_EmbedsOnlyMissingFingerprints(t *testing.T) {
	st := &fakeStore{}
	ctx := context.Background()
	require.NoError(t, st.Append(ctx, store.QARecord{ID: "a", Question: "q-a", Answer: "x"}))
	require.NoError(t, st.Append(ctx, store.QARecord{ID: "b", Question: "q-b", Answer: "x", Fingerprint: []float32{9}}))
	require.NoError(t, st.Append(ctx, store.QARecord{ID: "c", Question: "q-c", Answer: "x"}))

	b := NewBackfiller(st, &fakeEmbedder{vec: []float32{1, 2}}, nil)
	result, err := b.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 2, result.Embedded)
	assert.Equal(t, 0, result.Failed)

	records, err := st.List(ctx)
	require.NoError(t, err)
	for _, rec := range records {
		assert.True(t, rec.HasFingerprint(), "record %s missing fingerprint after backfill", rec.ID)
	}
	// The pre-existing fingerprint must not have been recomputed.
	assert.Equal(t, []float32{9}, records[1].Fingerprint)
}

func TestBackfiller_PartialFailureIsCountedNotFatal(t *testing.T) {
	st := &fakeStore{}
	ctx := context.Background()
	require.NoError(t, st.Append(ctx, store.QARecord{ID: "good", Question: "q-good", Answer: "x"}))
	require.NoError(t, st.Append(ctx, store.QARecord{ID: "bad", Question: "q-bad", Answer: "x"}))

	b := NewBackfiller(st, &flakyEmbedder{failFor: map[string]bool{"q-bad": true}}, nil)
	result, err := b.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 1, result.Embedded)
	assert.Equal(t, 1, result.Failed)

	// Re-running picks up the failed record once its embed succeeds.
	b2 := NewBackfiller(st, &fakeEmbedder{vec: []float32{1}}, nil)
	result2, err := b2.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result2.Scanned)
	assert.Equal(t, 1, result2.Embedded)
}

func TestBackfiller_EmptyStoreIsANoOp(t *testing.T) {
	b := NewBackfiller(&fakeStore{}, &fakeEmbedder{vec: []float32{1}}, nil)
	result, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Scanned)
}
