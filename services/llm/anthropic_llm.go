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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	anthropicAPIVersion = "2023-06-01"
	defaultBaseURL      = "https://api.anthropic.com/v1/messages"

	// anthropicDefaultMaxTokens caps a reply when the caller sets no limit.
	// The Messages API requires max_tokens; pick a generous answer-sized cap.
	anthropicDefaultMaxTokens = 2048
)

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    []systemBlock      `json:"system,omitempty"` // Top-level system prompt
	MaxTokens int                `json:"max_tokens"`

	Temperature *float32 `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type systemBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// --- Client Implementation ---

// AnthropicClient implements LLMClient for Anthropic models via the
// Messages REST API.
//
// Thread Safety: AnthropicClient is safe for concurrent use.
type AnthropicClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

var _ LLMClient = (*AnthropicClient)(nil)

// NewAnthropicClient creates a new AnthropicClient from environment variables.
//
// Description:
//
//	Reads ANTHROPIC_API_KEY and ANTHROPIC_MODEL from the environment.
//	Defaults to "claude-3-5-haiku-latest" if ANTHROPIC_MODEL is not set.
//
// Outputs:
//   - *AnthropicClient: The configured client.
//   - error: Non-nil if ANTHROPIC_API_KEY is missing.
func NewAnthropicClient() (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	model := os.Getenv("ANTHROPIC_MODEL")
	if apiKey == "" {
		slog.Warn("Anthropic API Key is empty. Anthropic Client will not function.")
		return nil, fmt.Errorf("anthropic: API key is missing (ANTHROPIC_API_KEY)")
	}
	if model == "" {
		model = "claude-3-5-haiku-latest"
		slog.Warn("ANTHROPIC_MODEL not set, defaulting to claude-3-5-haiku-latest")
	}
	slog.Info("Initializing Anthropic client", "model", model)
	return NewAnthropicClientWithConfig(apiKey, model, defaultBaseURL), nil
}

// NewAnthropicClientWithConfig creates an AnthropicClient with explicit
// configuration, without reading environment variables. Useful for testing
// with mock servers.
func NewAnthropicClientWithConfig(apiKey, model, baseURL string) *AnthropicClient {
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
	}
}

// Generate implements the LLMClient interface.
func (a *AnthropicClient) Generate(ctx context.Context, question string, params GenerationParams) (string, error) {
	slog.Debug("Generating answer via Anthropic", "model", a.model)
	messages := []Message{
		{Role: "system", Content: systemPromptOrDefault(params)},
		{Role: "user", Content: question},
	}
	return a.Chat(ctx, messages, params)
}

// Chat implements LLMClient.Chat using the Anthropic Messages API.
//
// Description:
//
//	Anthropic takes the system prompt as a top-level field, not a message
//	role, so system messages are lifted out of the conversation and
//	concatenated into system blocks. Remaining roles other than user and
//	assistant are mapped to user with a warning.
//
// Thread Safety: This method is safe for concurrent use.
func (a *AnthropicClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	slog.Debug("Chat via Anthropic", slog.String("model", a.model), slog.Int("messages", len(messages)))

	var systemBlocks []systemBlock
	antMessages := make([]anthropicMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemBlocks = append(systemBlocks, systemBlock{Type: "text", Text: msg.Content})
		case "user", "assistant":
			antMessages = append(antMessages, anthropicMessage{Role: msg.Role, Content: msg.Content})
		default:
			slog.Warn("Anthropic: unknown message role, mapping to user",
				slog.String("unknown_role", msg.Role),
				slog.String("model", a.model),
			)
			antMessages = append(antMessages, anthropicMessage{Role: "user", Content: msg.Content})
		}
	}

	maxTokens := anthropicDefaultMaxTokens
	if params.MaxTokens != nil {
		maxTokens = *params.MaxTokens
	}

	reqPayload := anthropicRequest{
		Model:     a.model,
		Messages:  antMessages,
		System:    systemBlocks,
		MaxTokens: maxTokens,
	}
	if params.Temperature != nil {
		reqPayload.Temperature = params.Temperature
	}

	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("anthropic: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", a.baseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("anthropic: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("anthropic: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic: API returned status %d: %s", resp.StatusCode, SafeLogString(string(bodyBytes)))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("anthropic: parsing response JSON: %w", err)
	}

	if apiResp.Error != nil {
		return "", fmt.Errorf("anthropic: API error: %s - %s", apiResp.Error.Type, SafeLogString(apiResp.Error.Message))
	}

	var sb strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic: returned no text content")
	}

	slog.Debug("Received Anthropic chat response", slog.Int("response_len", sb.Len()))

	return sb.String(), nil
}
