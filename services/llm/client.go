// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides generation-provider clients over raw net/http.
//
// Providers are deliberately called through their REST APIs without SDKs:
// the surface we need is one chat-completion call, and a raw client keeps
// the dependency tree flat and the wire format visible in tests.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Message is a single turn in a conversation, provider-neutral.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// GenerationParams carries the optional knobs for a generation call.
// Nil pointers mean "use the provider's default".
type GenerationParams struct {
	Temperature *float32
	MaxTokens   *int
	// SystemPrompt overrides the client's default persona for this call.
	SystemPrompt string
}

// LLMClient generates answers to user questions.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type LLMClient interface {
	// Generate wraps the question in a system+user conversation and returns
	// the assistant's reply.
	Generate(ctx context.Context, question string, params GenerationParams) (string, error)

	// Chat sends a full conversation and returns the assistant's reply.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)
}

// NewClientFromEnv selects a provider from LLM_PROVIDER ("openai" or
// "anthropic", default "openai") and builds it from that provider's
// environment variables.
func NewClientFromEnv() (LLMClient, error) {
	provider := strings.ToLower(os.Getenv("LLM_PROVIDER"))
	switch provider {
	case "", "openai":
		return NewOpenAIClient()
	case "anthropic":
		return NewAnthropicClient()
	default:
		return nil, fmt.Errorf("llm: unknown provider %q (want openai or anthropic)", provider)
	}
}
