// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package embedding turns question text into fingerprint vectors by calling
// an external embedding provider. The provider is a soft dependency: callers
// treat any error from Embed as a degradation signal, not a request failure.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// defaultEmbedTimeout bounds a single provider call. Embedding sits on the
// hot path of every uncached question, so a hung provider must fail fast and
// let the caller degrade to lexical matching.
const defaultEmbedTimeout = 15 * time.Second

// Embedder produces a fingerprint vector for a piece of text.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// embedRequest is the OpenAI-compatible /embeddings request body.
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse is the subset of the /embeddings response we consume.
type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint.
type HTTPEmbedder struct {
	url    string
	model  string
	apiKey string
	client *http.Client
	logger *slog.Logger
}

var _ Embedder = (*HTTPEmbedder)(nil)

// NewHTTPEmbedder creates an embedder from the environment.
//
// # Description
//
// Reads EMBEDDING_SERVICE_URL (default http://localhost:11434/v1/embeddings),
// EMBEDDING_MODEL (default nomic-embed-text), and EMBEDDING_API_KEY (optional;
// many self-hosted providers need none).
//
// # Outputs
//
//   - *HTTPEmbedder: Ready to use. Never nil.
func NewHTTPEmbedder(logger *slog.Logger) *HTTPEmbedder {
	url := os.Getenv("EMBEDDING_SERVICE_URL")
	if url == "" {
		url = "http://localhost:11434/v1/embeddings"
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = "nomic-embed-text"
	}
	return NewHTTPEmbedderWithConfig(url, model, os.Getenv("EMBEDDING_API_KEY"), defaultEmbedTimeout, logger)
}

// NewHTTPEmbedderWithConfig creates an embedder with explicit settings.
// Primarily for tests pointing at an httptest server.
func NewHTTPEmbedderWithConfig(url, model, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultEmbedTimeout
	}
	return &HTTPEmbedder{
		url:    url,
		model:  model,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Embed implements Embedder.
//
// # Description
//
// Posts the text to the provider and returns the first embedding vector.
// Every failure mode — transport error, non-200 status, malformed body,
// empty vector — is returned as an error for the caller to map to its
// degradation policy.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(embedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: HTTP call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding: provider returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed embedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("embedding: parse response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding: provider returned empty vector")
	}

	return parsed.Data[0].Embedding, nil
}
