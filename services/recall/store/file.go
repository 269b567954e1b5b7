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
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the record log as a single ordered JSON array.
//
// # Description
//
// The on-disk layout is a JSON array of objects
// {id, question, answer, timestamp, fingerprint?} in insertion order.
// Every mutation rewrites the whole file through a temp-file-and-rename
// sequence, so readers never observe a torn write. A process-wide mutex
// serializes mutations, preserving the total-order invariant under
// concurrent appends.
//
// The full log is kept in memory; the file is only read once at open time.
// This is deliberate — the intended corpus scale is bounded in the low
// thousands, and the similarity matcher scans the whole corpus per query
// anyway.
//
// # Thread Safety
//
// Safe for concurrent use via sync.RWMutex.
type FileStore struct {
	mu      sync.RWMutex
	path    string
	records []QARecord
	logger  *slog.Logger
}

// OpenFileStore opens (or creates) a file-backed store at path.
//
// # Inputs
//
//   - path: Location of the JSON log file. Parent directories are created.
//   - logger: Logger for diagnostics. May be nil.
//
// # Outputs
//
//   - *FileStore: Ready-to-use store with the existing log loaded.
//   - error: Non-nil if the file exists but cannot be read or parsed.
func OpenFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("file store: create directory: %w", err)
	}

	s := &FileStore{path: path, logger: logger}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file store: read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return s, nil
	}

	if err := json.Unmarshal(raw, &s.records); err != nil {
		return nil, fmt.Errorf("file store: parse %s: %w", path, err)
	}

	logger.Info("file store opened",
		slog.String("path", path),
		slog.Int("records", len(s.records)),
	)
	return s, nil
}

// Append adds a record to the end of the log and flushes it to disk.
func (s *FileStore) Append(ctx context.Context, rec QARecord) error {
	if rec.Question == "" || rec.Answer == "" {
		return ErrEmptyRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	if err := s.flushLocked(); err != nil {
		// Roll back the in-memory append so memory and disk stay consistent.
		s.records = s.records[:len(s.records)-1]
		return fmt.Errorf("file store: append: %w", err)
	}
	return nil
}

// List returns a copy of every record in insertion order.
func (s *FileStore) List(ctx context.Context) ([]QARecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]QARecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Clear empties the store atomically.
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.records
	s.records = nil
	if err := s.flushLocked(); err != nil {
		s.records = prev
		return fmt.Errorf("file store: clear: %w", err)
	}
	return nil
}

// AttachFingerprint sets the fingerprint of the record with the given ID if
// it has none. No-op when the record already carries one.
func (s *FileStore) AttachFingerprint(ctx context.Context, id string, fingerprint []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID != id {
			continue
		}
		if s.records[i].HasFingerprint() {
			return nil
		}
		s.records[i].Fingerprint = fingerprint
		if err := s.flushLocked(); err != nil {
			s.records[i].Fingerprint = nil
			return fmt.Errorf("file store: attach fingerprint: %w", err)
		}
		return nil
	}
	return ErrNotFound
}

// flushLocked rewrites the log file atomically. Caller must hold s.mu.
func (s *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	if s.records == nil {
		data = []byte("[]")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
