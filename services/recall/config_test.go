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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServiceConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"RECALL_LISTEN_ADDR", "ADMIN_SECRET", "RECALL_STORE_BACKEND", "RECALL_STORE_PATH",
		"REDIS_ADDR", "RECALL_HOT_CACHE_TTL", "RECALL_FINGERPRINT_THRESHOLD",
		"RECALL_LEXICAL_THRESHOLD", "RECALL_ASK_RATE", "RECALL_ASK_BURST",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadServiceConfig(nil)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "file", cfg.StoreBackend)
	assert.Equal(t, time.Hour, cfg.HotCacheTTL)
	assert.Equal(t, 0.8, cfg.FingerprintThreshold)
	assert.Equal(t, 0.4, cfg.LexicalThreshold)
}

func TestLoadServiceConfig_EnvOverrides(t *testing.T) {
	t.Setenv("RECALL_LISTEN_ADDR", ":9999")
	t.Setenv("ADMIN_SECRET", "s3cret")
	t.Setenv("RECALL_STORE_BACKEND", "Badger")
	t.Setenv("RECALL_HOT_CACHE_TTL", "30m")
	t.Setenv("RECALL_FINGERPRINT_THRESHOLD", "0.9")
	t.Setenv("RECALL_LEXICAL_THRESHOLD", "0.25")

	cfg := LoadServiceConfig(nil)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "s3cret", cfg.AdminSecret)
	assert.Equal(t, "badger", cfg.StoreBackend)
	assert.Equal(t, 30*time.Minute, cfg.HotCacheTTL)
	assert.Equal(t, 0.9, cfg.FingerprintThreshold)
	assert.Equal(t, 0.25, cfg.LexicalThreshold)
}

func TestLoadServiceConfig_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("RECALL_HOT_CACHE_TTL", "not-a-duration")
	t.Setenv("RECALL_FINGERPRINT_THRESHOLD", "1.5")
	t.Setenv("RECALL_ASK_BURST", "-2")

	cfg := LoadServiceConfig(nil)
	assert.Equal(t, time.Hour, cfg.HotCacheTTL)
	assert.Equal(t, 0.8, cfg.FingerprintThreshold)
	assert.Equal(t, 10, cfg.AskBurst)
}

func TestLoadPersona_EmbeddedDefault(t *testing.T) {
	p, err := LoadPersona("")
	require.NoError(t, err)
	assert.Equal(t, "Aleutian Recall", p.Name)

	rendered := p.RenderedSystemPrompt()
	assert.Contains(t, rendered, "Aleutian Recall", "template fields must be substituted")
	assert.NotContains(t, rendered, "{{", "no unrendered template markers")
}

func TestLoadPersona_FileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.yaml")
	content := "name: TestBot\ntone: playful\nsystem_prompt: \"You are {{.Name}}, answering in a {{.Tone}} tone.\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := LoadPersona(path)
	require.NoError(t, err)
	assert.Equal(t, "You are TestBot, answering in a playful tone.", p.RenderedSystemPrompt())
}

func TestLoadPersona_Errors(t *testing.T) {
	_, err := LoadPersona(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: X\nsystem_prompt: \"\""), 0o644))
	_, err = LoadPersona(bad)
	assert.Error(t, err)
}
