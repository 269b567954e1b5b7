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

func TestNewOpenAIClient_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIClient()
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	errMsg := err.Error()
	if !strings.Contains(errMsg, "openai:") {
		t.Errorf("error should include 'openai:' prefix, got: %s", errMsg)
	}
}

func TestNewOpenAIClient_DefaultModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("OPENAI_BASE_URL", "")

	client, err := NewOpenAIClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.model != "gpt-4o-mini" {
		t.Errorf("model = %q, want %q", client.model, "gpt-4o-mini")
	}
	if client.baseURL != defaultOpenAIBaseURL {
		t.Errorf("baseURL = %q, want %q", client.baseURL, defaultOpenAIBaseURL)
	}
}

func TestNewOpenAIClient_CustomModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_MODEL", "gpt-4o")

	client, err := NewOpenAIClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.model != "gpt-4o" {
		t.Errorf("model = %q, want %q", client.model, "gpt-4o")
	}
}

func TestOpenAIClient_Chat_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify auth header
		auth := r.Header.Get("Authorization")
		if auth != "Bearer test-key" {
			t.Errorf("Authorization = %q, want %q", auth, "Bearer test-key")
		}

		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q, want %q", req.Model, "gpt-4o-mini")
		}

		resp := openaiResponse{
			Choices: []openaiChoice{
				{
					Message:      openaiMessage{Role: "assistant", Content: "Hello from OpenAI!"},
					FinishReason: "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)

	messages := []Message{
		{Role: "user", Content: "Hello"},
	}

	result, err := client.Chat(context.Background(), messages, GenerationParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Hello from OpenAI!" {
		t.Errorf("result = %q, want %q", result, "Hello from OpenAI!")
	}
}

func TestOpenAIClient_Chat_UnknownRoleMappedToUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// Verify the unknown role was mapped to "user"
		for _, msg := range req.Messages {
			if msg.Content == "unknown role content" {
				if msg.Role != "user" {
					t.Errorf("unknown role should be mapped to 'user', got %q", msg.Role)
				}
			}
		}

		resp := openaiResponse{
			Choices: []openaiChoice{
				{Message: openaiMessage{Role: "assistant", Content: "ok"}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)

	messages := []Message{
		{Role: "critic", Content: "unknown role content"},
	}
	if _, err := client.Chat(context.Background(), messages, GenerationParams{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpenAIClient_Chat_ParamsAreForwarded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Temperature == nil || *req.Temperature != 0.2 {
			t.Errorf("temperature not forwarded: %+v", req.Temperature)
		}
		if req.MaxCompletionTokens == nil || *req.MaxCompletionTokens != 512 {
			t.Errorf("max tokens not forwarded: %+v", req.MaxCompletionTokens)
		}
		json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{{Message: openaiMessage{Role: "assistant", Content: "ok"}}},
		})
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)

	temp := float32(0.2)
	maxTok := 512
	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "q"}},
		GenerationParams{Temperature: &temp, MaxTokens: &maxTok})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpenAIClient_Chat_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_exceeded","message":"slow down"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)

	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "q"}}, GenerationParams{})
	if err == nil {
		t.Fatal("expected error on 429 response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should mention status code, got: %v", err)
	}
}

func TestOpenAIClient_Chat_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openaiResponse{})
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)

	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "q"}}, GenerationParams{})
	if err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestOpenAIClient_Generate_WrapsSystemPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("expected system+user messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != "system" || req.Messages[0].Content != "You are the support bot." {
			t.Errorf("unexpected system message: %+v", req.Messages[0])
		}
		if req.Messages[1].Role != "user" || req.Messages[1].Content != "what is go" {
			t.Errorf("unexpected user message: %+v", req.Messages[1])
		}
		json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{{Message: openaiMessage{Role: "assistant", Content: "an answer"}}},
		})
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)

	result, err := client.Generate(context.Background(), "what is go",
		GenerationParams{SystemPrompt: "You are the support bot."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "an answer" {
		t.Errorf("result = %q, want %q", result, "an answer")
	}
}
