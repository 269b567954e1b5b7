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
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/recall/services/embedding"
	"github.com/AleutianAI/recall/services/llm"
	"github.com/AleutianAI/recall/services/recall/hotcache"
	"github.com/AleutianAI/recall/services/recall/match"
	"github.com/AleutianAI/recall/services/recall/store"
)

var tracer = otel.Tracer("github.com/AleutianAI/recall/services/recall")

// Resolution outcome labels, shared by logs and metrics.
const (
	outcomeHotHit         = "hot_hit"
	outcomeFingerprintHit = "fingerprint_hit"
	outcomeLexicalHit     = "lexical_hit"
	outcomeGenerated      = "generated"
	outcomeError          = "error"
)

// Resolver answers questions by working through progressively more expensive
// sources: the exact-key hot cache, the fingerprint (or degraded lexical)
// match over stored records, and finally the generation provider.
//
// # Description
//
// Per request: check hot cache → compute fingerprint → match corpus →
// generate if nothing reusable → persist the new record (best effort) →
// populate the hot cache (best effort) → respond. Only invalid input and
// generation failure are request-fatal; every other dependency failure
// degrades with a warning.
//
// Two concurrent identical questions may both miss every cache and both
// generate and append. That duplicate work is accepted: the store tolerates
// duplicate questions and the matcher will reuse whichever record it scans
// first. Coalescing in-flight requests would buy little and couple request
// lifetimes together.
//
// # Thread Safety
//
// Safe for concurrent use.
type Resolver struct {
	store       store.Store
	embedder    embedding.Embedder
	fingerprint match.Matcher
	lexical     match.Matcher
	cache       hotcache.HotCache
	generator   llm.LLMClient
	persona     *Persona
	cfg         ServiceConfig
	logger      *slog.Logger
}

// NewResolver wires a resolver from its dependencies. All of them are
// required except cache, which may be nil to disable the hot-cache tier.
func NewResolver(
	st store.Store,
	embedder embedding.Embedder,
	cache hotcache.HotCache,
	generator llm.LLMClient,
	persona *Persona,
	cfg ServiceConfig,
	logger *slog.Logger,
) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:       st,
		embedder:    embedder,
		fingerprint: match.NewFingerprintMatcher(cfg.FingerprintThreshold),
		lexical:     match.NewLexicalMatcher(cfg.LexicalThreshold),
		cache:       cache,
		generator:   generator,
		persona:     persona,
		cfg:         cfg,
		logger:      logger,
	}
}

// Resolve answers a question.
//
// # Description
//
// Returns the reply text, or ErrInvalidInput for a blank question and
// ErrGenerationUnavailable when no cached, stored, or generated answer could
// be produced. Embedding, hot-cache, and persistence failures never fail the
// request; they are logged, counted, and worked around.
//
// # Thread Safety
//
// Safe for concurrent use.
func (r *Resolver) Resolve(ctx context.Context, question string) (string, error) {
	ctx, span := tracer.Start(ctx, "resolver.Resolve")
	defer span.End()

	start := time.Now()
	outcome := outcomeError
	defer func() {
		span.SetAttributes(attribute.String("recall.outcome", outcome))
		recordOutcome(outcome, time.Since(start).Seconds())
	}()

	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question must be a non-empty string: %w", ErrInvalidInput)
	}

	// Tier 1: exact-key hot cache.
	if answer, hit := r.checkHotCache(ctx, question); hit {
		outcome = outcomeHotHit
		r.logger.Debug("Hot cache hit", slog.Int("question_len", len(question)))
		return answer, nil
	}

	// Tier 2: similarity over stored records.
	answer, matchOutcome, fingerprint := r.matchCorpus(ctx, question)
	if matchOutcome != "" {
		outcome = matchOutcome
		r.populateHotCache(ctx, question, answer)
		return answer, nil
	}

	// Tier 3: generate a fresh answer.
	answer, err := r.generate(ctx, question)
	if err != nil {
		return "", err
	}
	outcome = outcomeGenerated

	r.persistRecord(ctx, question, answer, fingerprint)
	r.populateHotCache(ctx, question, answer)

	return answer, nil
}

// checkHotCache looks the verbatim question up in the hot cache. A cache
// failure is a miss plus a warning, never an error.
func (r *Resolver) checkHotCache(ctx context.Context, question string) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	ctx, span := tracer.Start(ctx, "resolver.checkHotCache")
	defer span.End()

	answer, found, err := r.cache.Get(ctx, question)
	if err != nil {
		recordDegradation("hotcache")
		r.logger.Warn("Hot cache lookup failed, treating as miss",
			slog.String("error", err.Error()),
		)
		return "", false
	}
	return answer, found
}

// matchCorpus loads the record log and runs the fingerprint strategy, or the
// lexical strategy when embedding is unavailable. Returns the reused answer
// and its outcome label, or "" when nothing cleared a threshold. The computed
// fingerprint (possibly nil) is returned for reuse by persistRecord.
func (r *Resolver) matchCorpus(ctx context.Context, question string) (answer, outcome string, fingerprint []float32) {
	ctx, span := tracer.Start(ctx, "resolver.matchCorpus")
	defer span.End()

	corpus, err := r.store.List(ctx)
	if err != nil {
		recordDegradation("store")
		r.logger.Warn("Record store unavailable for matching, skipping to generation",
			slog.String("error", err.Error()),
		)
		return "", "", nil
	}

	fingerprint = r.computeFingerprint(ctx, question)
	if len(corpus) == 0 {
		return "", "", fingerprint
	}

	strategy := r.fingerprint
	outcomeOnHit := outcomeFingerprintHit
	if fingerprint == nil {
		strategy = r.lexical
		outcomeOnHit = outcomeLexicalHit
	}

	query := match.Query{Text: question, Fingerprint: fingerprint}
	best, score, ok := strategy.Match(ctx, query, corpus)
	if best != nil {
		matchScore.WithLabelValues(strategy.Name()).Observe(score)
		span.SetAttributes(
			attribute.String("recall.match_strategy", strategy.Name()),
			attribute.Float64("recall.match_score", score),
			attribute.Bool("recall.match_accepted", ok),
		)
	}
	if !ok {
		if best != nil {
			r.logger.Debug("Best candidate below threshold",
				slog.String("strategy", strategy.Name()),
				slog.Float64("score", score),
			)
		}
		return "", "", fingerprint
	}

	r.logger.Info("Reusing stored answer",
		slog.String("strategy", strategy.Name()),
		slog.Float64("score", score),
		slog.String("record_id", best.ID),
	)
	return best.Answer, outcomeOnHit, fingerprint
}

// computeFingerprint embeds the question, returning nil on any provider
// failure so the caller degrades to lexical matching.
func (r *Resolver) computeFingerprint(ctx context.Context, question string) []float32 {
	embedCtx, cancel := context.WithTimeout(ctx, r.cfg.EmbedTimeout)
	defer cancel()

	vec, err := r.embedder.Embed(embedCtx, question)
	if err != nil {
		recordDegradation("embedding")
		r.logger.Warn("Embedding provider unavailable, degrading to lexical matching",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return vec
}

// generate invokes the generation provider with the persona system prompt.
func (r *Resolver) generate(ctx context.Context, question string) (string, error) {
	ctx, span := tracer.Start(ctx, "resolver.generate", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	genCtx, cancel := context.WithTimeout(ctx, r.cfg.GenerateTimeout)
	defer cancel()

	params := llm.GenerationParams{}
	if r.persona != nil {
		params.SystemPrompt = r.persona.RenderedSystemPrompt()
	}

	answer, err := r.generator.Generate(genCtx, question, params)
	if err != nil {
		generationCallsTotal.WithLabelValues("error").Inc()
		r.logger.Error("Generation provider call failed",
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	generationCallsTotal.WithLabelValues("ok").Inc()
	return answer, nil
}

// persistRecord appends the new question/answer pair. Best effort: a failure
// loses future reuse of this answer but the client still gets it.
func (r *Resolver) persistRecord(ctx context.Context, question, answer string, fingerprint []float32) {
	rec := store.QARecord{
		ID:          uuid.NewString(),
		Question:    question,
		Answer:      answer,
		Timestamp:   time.Now().UTC(),
		Fingerprint: fingerprint,
	}
	if err := r.store.Append(ctx, rec); err != nil {
		recordDegradation("store")
		r.logger.Warn("Failed to persist record, answer will not be reusable",
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}

// populateHotCache stores the answer under the verbatim question. Best effort.
func (r *Resolver) populateHotCache(ctx context.Context, question, answer string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, question, answer, r.cfg.HotCacheTTL); err != nil {
		recordDegradation("hotcache")
		r.logger.Warn("Failed to populate hot cache",
			slog.String("error", err.Error()),
		)
	}
}
