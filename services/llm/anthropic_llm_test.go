// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewAnthropicClient_MissingAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewAnthropicClient()
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "anthropic:") {
		t.Errorf("error should include 'anthropic:' prefix, got: %s", err)
	}
}

func TestNewAnthropicClient_DefaultModel(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("ANTHROPIC_MODEL", "")

	client, err := NewAnthropicClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.model != "claude-3-5-haiku-latest" {
		t.Errorf("model = %q, want %q", client.model, "claude-3-5-haiku-latest")
	}
}

func TestAnthropicClient_Chat_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get("x-api-key"); key != "test-key" {
			t.Errorf("x-api-key = %q, want %q", key, "test-key")
		}
		if ver := r.Header.Get("anthropic-version"); ver != anthropicAPIVersion {
			t.Errorf("anthropic-version = %q, want %q", ver, anthropicAPIVersion)
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.MaxTokens == 0 {
			t.Error("max_tokens must always be set")
		}

		resp := anthropicResponse{
			Content: []anthropicContent{{Type: "text", Text: "Hello from Anthropic!"}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("test-key", "claude-3-5-haiku-latest", server.URL)

	result, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "Hello"}}, GenerationParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Hello from Anthropic!" {
		t.Errorf("result = %q, want %q", result, "Hello from Anthropic!")
	}
}

func TestAnthropicClient_Chat_SystemMessagesLifted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if len(req.System) != 1 || req.System[0].Text != "persona" {
			t.Errorf("system prompt not lifted to top level: %+v", req.System)
		}
		for _, m := range req.Messages {
			if m.Role == "system" {
				t.Error("system role must not appear in messages array")
			}
		}
		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContent{{Type: "text", Text: "ok"}},
		})
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("test-key", "claude-3-5-haiku-latest", server.URL)

	messages := []Message{
		{Role: "system", Content: "persona"},
		{Role: "user", Content: "q"},
	}
	if _, err := client.Chat(context.Background(), messages, GenerationParams{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAnthropicClient_Chat_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"type":"overloaded_error","message":"try later"}}`))
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("test-key", "claude-3-5-haiku-latest", server.URL)

	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "q"}}, GenerationParams{})
	if err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestAnthropicClient_Chat_ConcatenatesTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContent{
				{Type: "text", Text: "part one, "},
				{Type: "text", Text: "part two"},
			},
		})
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("test-key", "claude-3-5-haiku-latest", server.URL)

	result, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "q"}}, GenerationParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "part one, part two" {
		t.Errorf("result = %q, want concatenated text blocks", result)
	}
}
