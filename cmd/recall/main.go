// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command recall starts the Aleutian Recall API server.
//
// Aleutian Recall answers repeated questions from memory instead of paying
// for a fresh generation every time:
//   - Exact repeats are served from an expiring hot cache
//   - Paraphrases are matched by embedding similarity over past answers
//   - When the embedding provider is down, a lexical matcher fills in
//   - Only genuinely novel questions reach the generation provider
//
// Usage:
//
//	go run ./cmd/recall
//	go run ./cmd/recall -port 9090 -debug
//
// With a local OpenAI-compatible stack:
//
//	OPENAI_API_KEY=x OPENAI_BASE_URL=http://localhost:8000/v1/chat/completions \
//	EMBEDDING_SERVICE_URL=http://localhost:11434/v1/embeddings \
//	ADMIN_SECRET=changeme go run ./cmd/recall
//
// Example requests:
//
//	# Ask a question
//	curl -X POST http://localhost:8080/ask \
//	  -H "Content-Type: application/json" \
//	  -d '{"question": "What is the capital of France?"}'
//
//	# Inspect stored history (admin)
//	curl http://localhost:8080/history -H "X-Admin-Secret: changeme" | jq
//
//	# Clear history (admin)
//	curl -X POST http://localhost:8080/clear-history -H "X-Admin-Secret: changeme"
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/recall/services/embedding"
	"github.com/AleutianAI/recall/services/llm"
	"github.com/AleutianAI/recall/services/recall"
	"github.com/AleutianAI/recall/services/recall/hotcache"
	"github.com/AleutianAI/recall/services/recall/store"
)

func main() {
	port := flag.Int("port", 0, "Port to listen on (overrides RECALL_LISTEN_ADDR)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	envFile := flag.String("env-file", "", "Optional .env file to load before reading configuration")
	flag.Parse()

	logger := slog.Default()

	// Optional .env: absence is normal outside local development.
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			logger.Error("Failed to load env file", slog.String("path", *envFile), slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else if err := godotenv.Load(); err == nil {
		logger.Info("Loaded .env file")
	}

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation, so trace IDs flow from callers through
	// the resolver spans.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	cfg := recall.LoadServiceConfig(logger)
	if *port != 0 {
		cfg.ListenAddr = fmt.Sprintf(":%d", *port)
	}

	st, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to open record store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cache := openHotCache(cfg, logger)

	embedder := embedding.NewHTTPEmbedder(logger)

	generator, err := llm.NewClientFromEnv()
	if err != nil {
		logger.Error("Failed to initialize generation client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	persona, err := recall.LoadPersona(cfg.PersonaFile)
	if err != nil {
		logger.Error("Failed to load persona", slog.String("error", err.Error()))
		os.Exit(1)
	}

	resolver := recall.NewResolver(st, embedder, cache, generator, persona, cfg, logger)
	backfiller := recall.NewBackfiller(st, embedder, logger)
	server := recall.NewServer(resolver, st, backfiller, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("aleutian-recall"))
	if *debug {
		router.Use(gin.Logger())
	}
	recall.RegisterRoutes(router, server, cfg, logger)

	printBanner(cfg)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down Aleutian Recall server")
		if closeStore != nil {
			if err := closeStore(); err != nil {
				slog.Warn("Failed to close record store", slog.String("error", err.Error()))
			}
		}
		os.Exit(0)
	}()

	slog.Info("Starting Aleutian Recall server", slog.String("address", cfg.ListenAddr))
	if err := router.Run(cfg.ListenAddr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// openStore builds the record store selected by RECALL_STORE_BACKEND. The
// returned close function may be nil when the backend holds no resources.
func openStore(cfg recall.ServiceConfig, logger *slog.Logger) (store.Store, func() error, error) {
	switch cfg.StoreBackend {
	case "file":
		fs, err := store.OpenFileStore(cfg.StorePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return fs, nil, nil
	case "badger":
		bs, err := store.OpenBadgerStore(cfg.StorePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return bs, bs.Close, nil
	case "weaviate":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		ws, err := store.OpenWeaviateStore(ctx, cfg.WeaviateHost, cfg.WeaviateScheme, logger)
		if err != nil {
			return nil, nil, err
		}
		return ws, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q (want file, badger, or weaviate)", cfg.StoreBackend)
	}
}

// openHotCache connects to Redis when configured, falling back to the
// in-process cache. A bad Redis address degrades rather than aborting:
// the hot cache is an optimization, not a dependency.
func openHotCache(cfg recall.ServiceConfig, logger *slog.Logger) hotcache.HotCache {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set, using in-process hot cache")
		return hotcache.NewMemoryCache()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rc, err := hotcache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	if err != nil {
		logger.Warn("Redis hot cache unavailable, falling back to in-process cache",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()),
		)
		return hotcache.NewMemoryCache()
	}
	return rc
}

func printBanner(cfg recall.ServiceConfig) {
	adminStatus := "DISABLED (set ADMIN_SECRET to enable)"
	if cfg.AdminSecret != "" {
		adminStatus = "ENABLED (X-Admin-Secret required)"
	}

	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                     ALEUTIAN RECALL SERVER                        ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Semantic answer cache in front of a generation provider.         ║
║  Store: %-10s  Admin: %-38s ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Ask a question                                            │  ║
║  │ curl -X POST http://localhost%s/ask \                    │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"question": "What is the capital of France?"}'       │  ║
║  │                                                             │  ║
║  │ # Inspect history (admin)                                   │  ║
║  │ curl http://localhost%s/history \                        │  ║
║  │   -H "X-Admin-Secret: $ADMIN_SECRET" | jq                   │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── Public: POST /ask                                            ║
║  ├── Admin:  GET /history, POST /clear-history,                   ║
║  │           POST /admin/backfill-fingerprints                    ║
║  └── Ops:    GET /health, GET /ready, GET /metrics                ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, cfg.StoreBackend, adminStatus, cfg.ListenAddr, cfg.ListenAddr)
}
