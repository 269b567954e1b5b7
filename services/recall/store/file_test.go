// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(id, question, answer string) QARecord {
	return QARecord{
		ID:        id,
		Question:  question,
		Answer:    answer,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFileStore_AppendAndList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	s, err := OpenFileStore(path, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Append(ctx, testRecord("a", "What is Recall?", "A semantic answer cache.")))
	require.NoError(t, s.Append(ctx, testRecord("b", "Who made it?", "Aleutian AI.")))

	records, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "b", records[1].ID)
	assert.Equal(t, "What is Recall?", records[0].Question)
}

func TestFileStore_RejectsEmptyFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	s, err := OpenFileStore(path, nil)
	require.NoError(t, err)

	ctx := context.Background()
	assert.ErrorIs(t, s.Append(ctx, testRecord("a", "", "answer")), ErrEmptyRecord)
	assert.ErrorIs(t, s.Append(ctx, testRecord("a", "question", "")), ErrEmptyRecord)

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	s, err := OpenFileStore(path, nil)
	require.NoError(t, err)

	ctx := context.Background()
	rec := testRecord("a", "q", "a")
	rec.Fingerprint = []float32{0.1, 0.2, 0.3}
	require.NoError(t, s.Append(ctx, rec))

	reopened, err := OpenFileStore(path, nil)
	require.NoError(t, err)

	records, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, records[0].Fingerprint)
	assert.True(t, records[0].Timestamp.Equal(rec.Timestamp))
}

func TestFileStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	s, err := OpenFileStore(path, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Append(ctx, testRecord("a", "q", "a")))
	require.NoError(t, s.Clear(ctx))

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	// The on-disk file must reflect the cleared state too.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk []QARecord
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Empty(t, onDisk)
}

func TestFileStore_AttachFingerprint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	s, err := OpenFileStore(path, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Append(ctx, testRecord("a", "q", "a")))

	require.NoError(t, s.AttachFingerprint(ctx, "a", []float32{1, 0}))
	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, records[0].Fingerprint)

	// A second attach must not overwrite — fingerprints are immutable once set.
	require.NoError(t, s.AttachFingerprint(ctx, "a", []float32{0, 1}))
	records, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, records[0].Fingerprint)

	assert.ErrorIs(t, s.AttachFingerprint(ctx, "missing", []float32{1}), ErrNotFound)
}

func TestFileStore_ConcurrentAppendsKeepTotalOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	s, err := OpenFileStore(path, nil)
	require.NoError(t, err)

	ctx := context.Background()
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := testRecord(fmt.Sprintf("id-%d", i), fmt.Sprintf("q-%d", i), "a")
			assert.NoError(t, s.Append(ctx, rec))
		}(i)
	}
	wg.Wait()

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, n)

	// Every append must be present exactly once; order among concurrent
	// appends is unspecified, but the log must not lose or duplicate writes.
	seen := make(map[string]bool, n)
	for _, rec := range records {
		assert.False(t, seen[rec.ID], "duplicate record %s", rec.ID)
		seen[rec.ID] = true
	}
}
