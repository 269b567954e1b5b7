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
	"crypto/subtle"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// AdminSecretHeader carries the shared secret for admin endpoints.
const AdminSecretHeader = "X-Admin-Secret"

// RequireAdminSecret gates admin endpoints behind a shared secret.
//
// # Description
//
// The header value is compared in constant time so response timing leaks
// nothing about how much of a guessed secret matched. An empty configured
// secret fails closed: every request is rejected until one is set.
func RequireAdminSecret(secret string, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "admin endpoints are disabled"})
			return
		}
		provided := c.GetHeader(AdminSecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			logger.Warn("Admin request rejected",
				slog.String("path", c.FullPath()),
				slog.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
			return
		}
		c.Next()
	}
}

// ipRateLimiter hands out one token bucket per client IP.
//
// Buckets are never evicted; with per-IP cardinality bounded by real client
// populations this is fine for the deployments this service targets.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newIPRateLimiter(r float64, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(r),
		burst:    burst,
	}
}

func (l *ipRateLimiter) limiterFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(l.r, l.burst)
		l.limiters[ip] = lim
	}
	return lim
}

// RateLimitAsk applies a per-client-IP token bucket to the question endpoint.
// Exceeding it returns 429 without touching any downstream dependency.
func RateLimitAsk(perSecond float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	limiter := newIPRateLimiter(perSecond, burst)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.limiterFor(ip).Allow() {
			logger.Warn("Rate limit exceeded", slog.String("client_ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
