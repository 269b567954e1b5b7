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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/recall/services/recall/store"
)

// AskRequest is the POST /ask body.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the POST /ask success body.
type AskResponse struct {
	Reply string `json:"reply"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server holds the handler dependencies for the HTTP surface.
type Server struct {
	resolver *Resolver
	store    store.Store
	backfill *Backfiller
	logger   *slog.Logger
}

// NewServer wires the HTTP surface around a resolver and its store.
func NewServer(resolver *Resolver, st store.Store, backfill *Backfiller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{resolver: resolver, store: st, backfill: backfill, logger: logger}
}

// HandleAsk resolves a question to an answer.
//
// # Description
//
// Responds 200 with {reply}, 400 for malformed input (no side effects),
// 502 when the generation provider was needed and unavailable, and 500 for
// anything else. Error bodies never echo internal error chains to clients.
func (s *Server) HandleAsk(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "request body must be JSON with a string 'question' field"})
		return
	}

	reply, err := s.resolver.Resolve(c.Request.Context(), req.Question)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "question must be a non-empty string"})
		case errors.Is(err, ErrGenerationUnavailable):
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: "answer generation is temporarily unavailable"})
		default:
			s.logger.Error("Unclassified resolve failure", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, AskResponse{Reply: reply})
}

// HandleHistory returns every stored record in insertion order.
func (s *Server) HandleHistory(c *gin.Context) {
	records, err := s.store.List(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to list records", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read history"})
		return
	}
	if records == nil {
		records = []store.QARecord{}
	}
	c.JSON(http.StatusOK, records)
}

// HandleClearHistory atomically empties the record store. The hot cache is
// deliberately left alone; its entries age out on their own TTL.
func (s *Server) HandleClearHistory(c *gin.Context) {
	if err := s.store.Clear(c.Request.Context()); err != nil {
		s.logger.Error("Failed to clear records", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to clear history"})
		return
	}
	s.logger.Info("Record history cleared", slog.String("client_ip", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// HandleBackfillFingerprints computes fingerprints for records that are
// missing one. Idempotent; safe to re-run after partial failures.
func (s *Server) HandleBackfillFingerprints(c *gin.Context) {
	result, err := s.backfill.Run(c.Request.Context())
	if err != nil {
		s.logger.Error("Fingerprint backfill failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "backfill failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleHealth reports process liveness.
func (s *Server) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady reports whether the store can serve reads.
func (s *Server) HandleReady(c *gin.Context) {
	if _, err := s.store.List(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
