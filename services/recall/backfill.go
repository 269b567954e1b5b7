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
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/recall/services/embedding"
	"github.com/AleutianAI/recall/services/recall/store"
)

// backfillConcurrency is the number of parallel embedding calls during a
// backfill run. Matches what a local embedding server sustains comfortably.
const backfillConcurrency = 10

// BackfillResult summarizes one backfill run.
type BackfillResult struct {
	Scanned  int `json:"scanned"`
	Embedded int `json:"embedded"`
	Failed   int `json:"failed"`
}

// Backfiller computes fingerprints for stored records that predate embedding
// availability (written while the provider was down, or imported from a
// lexical-only deployment).
type Backfiller struct {
	store    store.Store
	embedder embedding.Embedder
	logger   *slog.Logger
}

// NewBackfiller returns a backfiller over the given store and embedder.
func NewBackfiller(st store.Store, embedder embedding.Embedder, logger *slog.Logger) *Backfiller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backfiller{store: st, embedder: embedder, logger: logger}
}

// Run embeds every record missing a fingerprint, bounded-concurrently.
//
// # Description
//
// Individual embedding failures are counted and skipped so one bad record
// cannot block the rest; re-running picks up whatever failed. Only a store
// read failure aborts the run, since there is nothing to iterate.
//
// # Thread Safety
//
// Safe to call concurrently, though runs race harmlessly: AttachFingerprint
// is idempotent and first-write-wins.
func (b *Backfiller) Run(ctx context.Context) (*BackfillResult, error) {
	records, err := b.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("backfill: listing records: %w", err)
	}

	var embedded, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillConcurrency)

	scanned := 0
	for _, rec := range records {
		if rec.HasFingerprint() {
			continue
		}
		scanned++
		r := rec
		g.Go(func() error {
			vec, err := b.embedder.Embed(gctx, r.Question)
			if err != nil {
				failed.Add(1)
				b.logger.Warn("Backfill: embedding failed for record",
					slog.String("record_id", r.ID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			if err := b.store.AttachFingerprint(gctx, r.ID, vec); err != nil {
				failed.Add(1)
				b.logger.Warn("Backfill: attaching fingerprint failed",
					slog.String("record_id", r.ID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			embedded.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("backfill: %w", err)
	}

	result := &BackfillResult{
		Scanned:  scanned,
		Embedded: int(embedded.Load()),
		Failed:   int(failed.Load()),
	}
	b.logger.Info("Fingerprint backfill complete",
		slog.Int("scanned", result.Scanned),
		slog.Int("embedded", result.Embedded),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}
