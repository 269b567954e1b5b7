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
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers all answer-service routes with the router.
//
// Description:
//
//	Registers the public, admin, and operational endpoints on the given
//	engine, which should already carry recovery and tracing middleware.
//
// Public Endpoints:
//
//	POST /ask - Resolve a question to an answer
//
// Admin Endpoints (X-Admin-Secret required):
//
//	GET  /history - List all stored records in insertion order
//	POST /clear-history - Atomically empty the record store
//	POST /admin/backfill-fingerprints - Embed records missing fingerprints
//
// Operational Endpoints:
//
//	GET /health - Liveness check
//	GET /ready - Readiness check (store reachable)
//	GET /metrics - Prometheus metrics
//
// Example:
//
//	server := recall.NewServer(resolver, st, backfiller, logger)
//	recall.RegisterRoutes(router, server, cfg, logger)
func RegisterRoutes(router *gin.Engine, server *Server, cfg ServiceConfig, logger *slog.Logger) {
	router.POST("/ask",
		RateLimitAsk(cfg.AskRatePerSecond, cfg.AskBurst, logger),
		server.HandleAsk,
	)

	admin := RequireAdminSecret(cfg.AdminSecret, logger)
	router.GET("/history", admin, server.HandleHistory)
	router.POST("/clear-history", admin, server.HandleClearHistory)
	router.POST("/admin/backfill-fingerprints", admin, server.HandleBackfillFingerprints)

	router.GET("/health", server.HandleHealth)
	router.GET("/ready", server.HandleReady)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
