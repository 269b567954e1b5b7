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
	"fmt"
	"log/slog"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// weaviateClass is the Weaviate class holding the record log.
const weaviateClass = "AnswerRecord"

// weaviateListLimit bounds List results. The resolver's matcher does an O(n)
// scan per query, so the corpus is assumed bounded in the low thousands; the
// limit is a guard, not a pagination scheme.
const weaviateListLimit = 10000

// WeaviateStore implements Store on a managed Weaviate instance.
//
// # Description
//
// Each QARecord becomes one Weaviate object with the fingerprint stored as
// the object vector (vectorizer "none" — vectors always come from our own
// embedding provider, never from Weaviate's modules). Insertion order is
// recovered by sorting on the createdAt property, which Append sets from the
// record timestamp.
//
// Clear drops and recreates the whole class, which Weaviate applies
// atomically from the caller's point of view.
//
// # Thread Safety
//
// Safe for concurrent use; ordering under concurrent appends is serialized
// server-side by Weaviate.
type WeaviateStore struct {
	client *weaviate.Client
	logger *slog.Logger
}

// OpenWeaviateStore connects to Weaviate at host and ensures the schema exists.
//
// # Inputs
//
//   - host: Host and port, e.g. "localhost:8081".
//   - scheme: "http" or "https".
//   - logger: Logger for diagnostics. May be nil.
//
// # Outputs
//
//   - *WeaviateStore: Ready-to-use store.
//   - error: Non-nil if the client cannot be built or the schema check fails.
func OpenWeaviateStore(ctx context.Context, host, scheme string, logger *slog.Logger) (*WeaviateStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("weaviate store: build client: %w", err)
	}

	s := &WeaviateStore{client: client, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	logger.Info("weaviate store opened",
		slog.String("host", host),
		slog.String("class", weaviateClass),
	)
	return s, nil
}

// ensureSchema creates the AnswerRecord class when it does not exist yet.
func (s *WeaviateStore) ensureSchema(ctx context.Context) error {
	exists, err := s.client.Schema().ClassExistenceChecker().
		WithClassName(weaviateClass).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate store: schema check: %w", err)
	}
	if exists {
		return nil
	}

	class := &models.Class{
		Class:      weaviateClass,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "recordId", DataType: []string{"text"}},
			{Name: "question", DataType: []string{"text"}},
			{Name: "answer", DataType: []string{"text"}},
			{Name: "createdAt", DataType: []string{"date"}},
		},
	}
	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("weaviate store: create class: %w", err)
	}
	return nil
}

// Append stores the record as one Weaviate object, vector included when present.
func (s *WeaviateStore) Append(ctx context.Context, rec QARecord) error {
	if rec.Question == "" || rec.Answer == "" {
		return ErrEmptyRecord
	}

	creator := s.client.Data().Creator().
		WithClassName(weaviateClass).
		WithProperties(map[string]interface{}{
			"recordId":  rec.ID,
			"question":  rec.Question,
			"answer":    rec.Answer,
			"createdAt": rec.Timestamp.Format(time.RFC3339Nano),
		})
	if rec.HasFingerprint() {
		creator = creator.WithVector(rec.Fingerprint)
	}

	if _, err := creator.Do(ctx); err != nil {
		return fmt.Errorf("weaviate store: append: %w", err)
	}
	return nil
}

// List returns every record ordered by creation time.
func (s *WeaviateStore) List(ctx context.Context) ([]QARecord, error) {
	fields := []graphql.Field{
		{Name: "recordId"},
		{Name: "question"},
		{Name: "answer"},
		{Name: "createdAt"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "vector"}}},
	}
	sort := graphql.Sort{Path: []string{"createdAt"}, Order: graphql.Asc}

	resp, err := s.client.GraphQL().Get().
		WithClassName(weaviateClass).
		WithFields(fields...).
		WithSort(sort).
		WithLimit(weaviateListLimit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate store: list: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate store: list: graphql: %s", resp.Errors[0].Message)
	}

	return s.decodeListResponse(resp.Data)
}

// Clear drops and recreates the class, emptying the log atomically.
func (s *WeaviateStore) Clear(ctx context.Context) error {
	err := s.client.Schema().ClassDeleter().WithClassName(weaviateClass).Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate store: drop class: %w", err)
	}
	return s.ensureSchema(ctx)
}

// AttachFingerprint sets the object vector of the record with the given ID if
// it has none. No-op when a vector is already present.
func (s *WeaviateStore) AttachFingerprint(ctx context.Context, id string, fingerprint []float32) error {
	where := filters.Where().
		WithPath([]string{"recordId"}).
		WithOperator(filters.Equal).
		WithValueText(id)

	fields := []graphql.Field{
		{Name: "recordId"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "vector"}}},
	}

	resp, err := s.client.GraphQL().Get().
		WithClassName(weaviateClass).
		WithFields(fields...).
		WithWhere(where).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate store: attach fingerprint: lookup: %w", err)
	}
	if len(resp.Errors) > 0 {
		return fmt.Errorf("weaviate store: attach fingerprint: graphql: %s", resp.Errors[0].Message)
	}

	objects, err := classObjects(resp.Data)
	if err != nil {
		return fmt.Errorf("weaviate store: attach fingerprint: %w", err)
	}
	if len(objects) == 0 {
		return ErrNotFound
	}

	obj, _ := objects[0].(map[string]interface{})
	additional, _ := obj["_additional"].(map[string]interface{})
	wvID, _ := additional["id"].(string)
	if wvID == "" {
		return fmt.Errorf("weaviate store: attach fingerprint: missing object id")
	}
	if vec, _ := additional["vector"].([]interface{}); len(vec) > 0 {
		return nil // idempotent backfill
	}

	err = s.client.Data().Updater().
		WithMerge().
		WithClassName(weaviateClass).
		WithID(wvID).
		WithVector(fingerprint).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate store: attach fingerprint: update: %w", err)
	}
	return nil
}

// decodeListResponse converts a GraphQL Get payload into QARecords.
func (s *WeaviateStore) decodeListResponse(data map[string]models.JSONObject) ([]QARecord, error) {
	objects, err := classObjects(data)
	if err != nil {
		return nil, fmt.Errorf("weaviate store: list: %w", err)
	}

	out := make([]QARecord, 0, len(objects))
	for _, raw := range objects {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		rec := QARecord{
			ID:       asString(obj["recordId"]),
			Question: asString(obj["question"]),
			Answer:   asString(obj["answer"]),
		}
		if ts, err := time.Parse(time.RFC3339Nano, asString(obj["createdAt"])); err == nil {
			rec.Timestamp = ts
		} else {
			// A zero timestamp breaks insertion ordering, so make the bad
			// payload visible instead of silently reordering history.
			s.logger.Warn("weaviate store: unparseable createdAt, record keeps zero timestamp",
				slog.String("record_id", rec.ID),
				slog.String("created_at", asString(obj["createdAt"])),
				slog.String("error", err.Error()),
			)
		}

		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			if rawVec, ok := additional["vector"].([]interface{}); ok && len(rawVec) > 0 {
				vec := make([]float32, 0, len(rawVec))
				for _, v := range rawVec {
					if f, ok := v.(float64); ok {
						vec = append(vec, float32(f))
					}
				}
				rec.Fingerprint = vec
			}
		}

		out = append(out, rec)
	}
	return out, nil
}

// classObjects extracts the AnswerRecord object list from a Get payload.
func classObjects(data map[string]models.JSONObject) ([]interface{}, error) {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected response shape: no Get block")
	}
	objects, ok := get[weaviateClass].([]interface{})
	if !ok {
		// A class with no objects comes back as null, not an empty list.
		return nil, nil
	}
	return objects, nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

var _ Store = (*WeaviateStore)(nil)
