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
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
)

// Key layout:
//
//	rec/{seq:016x}  →  JSON-encoded QARecord   (insertion order = key order)
//	id/{uuid}       →  the rec/ key of that record
//
// The seq counter comes from a BadgerDB Sequence, so concurrent appends get
// distinct, monotonically increasing keys without application-level locking.
const (
	badgerRecordPrefix = "rec/"
	badgerIDPrefix     = "id/"
	badgerSeqKey       = "meta/seq"
)

// BadgerStore implements Store on an embedded BadgerDB instance.
//
// # Description
//
// BadgerDB is embedded — no network call, no availability dependency — which
// makes it the default durable backend for single-node deployments. Records
// are stored under monotonically ordered keys so List can stream them back in
// insertion order with a plain prefix iteration.
//
// The store owns the DB handle; call Close when done.
//
// # Thread Safety
//
// Safe for concurrent use. BadgerDB transactions are per-goroutine and the
// sequence allocator is atomic.
type BadgerStore struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *slog.Logger
}

// OpenBadgerStore opens (or creates) a Badger-backed store at dir.
//
// # Inputs
//
//   - dir: Directory for the BadgerDB files. Created if absent.
//   - logger: Logger for diagnostics. May be nil.
//
// # Outputs
//
//   - *BadgerStore: Ready-to-use store. Never nil on success.
//   - error: Non-nil if the DB cannot be opened.
func OpenBadgerStore(dir string, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // badger's own logger is noisy; slog covers diagnostics
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger store: open %s: %w", dir, err)
	}

	seq, err := db.GetSequence([]byte(badgerSeqKey), 64)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("badger store: sequence: %w", err)
	}

	logger.Info("badger store opened", slog.String("dir", dir))
	return &BadgerStore{db: db, seq: seq, logger: logger}, nil
}

// Close releases the sequence lease and closes the DB.
func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		s.logger.Warn("badger store: sequence release failed", slog.String("error", err.Error()))
	}
	return s.db.Close()
}

// Append adds a record under the next sequence key.
func (s *BadgerStore) Append(ctx context.Context, rec QARecord) error {
	if rec.Question == "" || rec.Answer == "" {
		return ErrEmptyRecord
	}

	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("badger store: next sequence: %w", err)
	}
	key := recordKey(n)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("badger store: marshal record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set([]byte(badgerIDPrefix+rec.ID), key)
	})
	if err != nil {
		return fmt.Errorf("badger store: append: %w", err)
	}
	return nil
}

// List returns every record in insertion (key) order.
func (s *BadgerStore) List(ctx context.Context) ([]QARecord, error) {
	var out []QARecord

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(badgerRecordPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec QARecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode record %s: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger store: list: %w", err)
	}
	return out, nil
}

// Clear drops every record and the ID index in one atomic operation.
func (s *BadgerStore) Clear(ctx context.Context) error {
	err := s.db.DropPrefix([]byte(badgerRecordPrefix), []byte(badgerIDPrefix))
	if err != nil {
		return fmt.Errorf("badger store: clear: %w", err)
	}
	return nil
}

// AttachFingerprint sets the fingerprint of the record with the given ID if
// it has none. No-op when the record already carries one.
func (s *BadgerStore) AttachFingerprint(ctx context.Context, id string, fingerprint []float32) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		idxItem, err := txn.Get([]byte(badgerIDPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lookup id index: %w", err)
		}
		key, err := idxItem.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy index value: %w", err)
		}

		recItem, err := txn.Get(key)
		if err != nil {
			return fmt.Errorf("lookup record: %w", err)
		}
		var rec QARecord
		if err := recItem.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}

		if rec.HasFingerprint() {
			return nil // idempotent backfill
		}
		rec.Fingerprint = fingerprint

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		return txn.Set(key, data)
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("badger store: attach fingerprint: %w", err)
	}
	return nil
}

// recordKey builds the ordered rec/ key for a sequence number.
func recordKey(n uint64) []byte {
	return fmt.Appendf(nil, "%s%016x", badgerRecordPrefix, n)
}

var _ Store = (*BadgerStore)(nil)
