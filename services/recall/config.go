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
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Persona
// =============================================================================

//go:embed persona.yaml
var defaultPersonaYAML []byte

// =============================================================================
// Service Configuration
// =============================================================================

// ServiceConfig holds every runtime knob of the answer service. Values come
// from the environment at startup; fields left at their zero value fall back
// to the defaults below.
//
// Thread Safety: Immutable after LoadServiceConfig; safe for concurrent use.
type ServiceConfig struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string

	// AdminSecret authenticates the admin endpoints via the X-Admin-Secret
	// header. Empty disables the admin surface entirely (requests get 403).
	AdminSecret string

	// StoreBackend selects the record store: "file", "badger", or "weaviate".
	StoreBackend string

	// StorePath is the data file (file backend) or directory (badger backend).
	StorePath string

	// WeaviateHost and WeaviateScheme locate the Weaviate instance when
	// StoreBackend is "weaviate".
	WeaviateHost   string
	WeaviateScheme string

	// RedisAddr enables the Redis hot cache when non-empty; otherwise the
	// in-process cache is used.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// HotCacheTTL is how long exact-repeat answers stay cached.
	HotCacheTTL time.Duration

	// FingerprintThreshold is the minimum cosine similarity for semantic
	// reuse (higher is better).
	FingerprintThreshold float64

	// LexicalThreshold is the maximum normalized edit distance for the
	// degraded-mode lexical match (lower is better).
	LexicalThreshold float64

	// EmbedTimeout and GenerateTimeout bound the two external calls.
	EmbedTimeout    time.Duration
	GenerateTimeout time.Duration

	// AskRatePerSecond and AskBurst shape the per-client-IP token bucket
	// on /ask.
	AskRatePerSecond float64
	AskBurst         int

	// PersonaFile optionally overrides the embedded brand persona.
	PersonaFile string
}

// DefaultServiceConfig returns the configuration used when no environment
// overrides are present.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddr:           ":8080",
		StoreBackend:         "file",
		StorePath:            "data/answers.json",
		WeaviateScheme:       "http",
		HotCacheTTL:          time.Hour,
		FingerprintThreshold: 0.8,
		LexicalThreshold:     0.4,
		EmbedTimeout:         15 * time.Second,
		GenerateTimeout:      60 * time.Second,
		AskRatePerSecond:     5,
		AskBurst:             10,
	}
}

// LoadServiceConfig reads the environment over DefaultServiceConfig.
//
// # Description
//
// Unparseable numeric or duration values are logged as warnings and left at
// their defaults rather than failing startup; a missing ADMIN_SECRET is
// logged loudly because it disables the admin surface.
func LoadServiceConfig(logger *slog.Logger) ServiceConfig {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := DefaultServiceConfig()

	if v := os.Getenv("RECALL_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	cfg.AdminSecret = os.Getenv("ADMIN_SECRET")
	if cfg.AdminSecret == "" {
		logger.Warn("ADMIN_SECRET not set; admin endpoints will reject all requests")
	}
	if v := os.Getenv("RECALL_STORE_BACKEND"); v != "" {
		cfg.StoreBackend = strings.ToLower(v)
	}
	if v := os.Getenv("RECALL_STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("WEAVIATE_HOST"); v != "" {
		cfg.WeaviateHost = v
	}
	if v := os.Getenv("WEAVIATE_SCHEME"); v != "" {
		cfg.WeaviateScheme = v
	}
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = n
		} else {
			logger.Warn("Invalid REDIS_DB, using default", slog.String("value", v))
		}
	}
	if v := os.Getenv("RECALL_HOT_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.HotCacheTTL = d
		} else {
			logger.Warn("Invalid RECALL_HOT_CACHE_TTL, using default", slog.String("value", v))
		}
	}
	if v := os.Getenv("RECALL_FINGERPRINT_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			cfg.FingerprintThreshold = f
		} else {
			logger.Warn("Invalid RECALL_FINGERPRINT_THRESHOLD, using default", slog.String("value", v))
		}
	}
	if v := os.Getenv("RECALL_LEXICAL_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			cfg.LexicalThreshold = f
		} else {
			logger.Warn("Invalid RECALL_LEXICAL_THRESHOLD, using default", slog.String("value", v))
		}
	}
	if v := os.Getenv("RECALL_ASK_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.AskRatePerSecond = f
		} else {
			logger.Warn("Invalid RECALL_ASK_RATE, using default", slog.String("value", v))
		}
	}
	if v := os.Getenv("RECALL_ASK_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AskBurst = n
		} else {
			logger.Warn("Invalid RECALL_ASK_BURST, using default", slog.String("value", v))
		}
	}
	cfg.PersonaFile = os.Getenv("RECALL_PERSONA_FILE")

	return cfg
}

// =============================================================================
// Brand Persona
// =============================================================================

// Persona is the brand voice applied to every generated answer.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Persona struct {
	// Name is the assistant's public name, available to the prompt template.
	Name string `yaml:"name"`

	// Tone describes the answer style, available to the prompt template.
	Tone string `yaml:"tone"`

	// SystemPrompt is a text/template over the Persona fields; the rendered
	// result becomes the generation system prompt.
	SystemPrompt string `yaml:"system_prompt"`

	rendered string
}

// LoadPersona parses the persona from path, or from the embedded default
// when path is empty, and renders its system prompt template.
func LoadPersona(path string) (*Persona, error) {
	raw := defaultPersonaYAML
	if path != "" {
		fileBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("recall: reading persona file: %w", err)
		}
		raw = fileBytes
	}

	var p Persona
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("recall: parsing persona YAML: %w", err)
	}
	if strings.TrimSpace(p.SystemPrompt) == "" {
		return nil, fmt.Errorf("recall: persona has empty system_prompt")
	}

	tmpl, err := template.New("system_prompt").Parse(p.SystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("recall: parsing system prompt template: %w", err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, p); err != nil {
		return nil, fmt.Errorf("recall: rendering system prompt: %w", err)
	}
	p.rendered = strings.TrimSpace(sb.String())

	return &p, nil
}

// RenderedSystemPrompt returns the system prompt with persona fields applied.
func (p *Persona) RenderedSystemPrompt() string {
	return p.rendered
}
