// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validator

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
)

// RouterConfig configures the assembled HTTP router.
type RouterConfig struct {
	// RequestLogging enables gin's request log middleware.
	RequestLogging bool

	// RateLimit is the sustained per-client request rate in requests
	// per second. Zero disables limiting.
	RateLimit rate.Limit

	// RateBurst is the per-client burst allowance.
	RateBurst int

	// Metrics exposes GET /metrics with the Prometheus handler.
	Metrics bool
}

// DefaultRouterConfig returns the router configuration used by the
// serve command.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		RequestLogging: true,
		RateLimit:      20,
		RateBurst:      40,
		Metrics:        true,
	}
}

// RegisterRoutes registers all validator routes with the router.
//
// Description:
//
//	Registers all /v1/validate/* endpoints with the given Gin router
//	group, plus the run-ledger endpoints when the handlers carry a
//	ledger. The router group should already have any required
//	middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/validate/code - Analyze one source unit for bias defects
//	POST /v1/validate/fix - Rewrite fixable findings, return the diff
//	POST /v1/validate/metrics - Judge a backtest metrics record
//	POST /v1/validate/run - Full pipeline: analysis plus evaluation
//	GET  /v1/runs - List recorded reports, newest first (ledger only)
//	GET  /v1/runs/:id - Get one recorded report (ledger only)
//	GET  /v1/health - Health check
//
// Example:
//
//	service, _ := validator.NewService(validator.DefaultServiceConfig())
//	handlers := validator.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	validator.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	validate := rg.Group("/validate")
	{
		// Code analysis
		validate.POST("/code", handlers.HandleValidateCode)
		validate.POST("/fix", handlers.HandleFixCode)

		// Statistical evaluation
		validate.POST("/metrics", handlers.HandleEvaluateMetrics)

		// Full pipeline
		validate.POST("/run", handlers.HandleRun)
	}

	// Run history, present only when a ledger is configured.
	if handlers.ledger != nil {
		runs := rg.Group("/runs")
		{
			runs.GET("", handlers.HandleListRuns)
			runs.GET("/:id", handlers.HandleGetRun)
		}
	}

	// Health check
	rg.GET("/health", handlers.HandleHealth)
}

// NewRouter assembles the Gin engine for the validator service.
//
// Description:
//
//	Builds a gin.Engine with panic recovery, OpenTelemetry request
//	tracing, optional request logging and per-client rate limiting,
//	and the validator routes mounted under /v1. When cfg.Metrics is
//	set, GET /metrics serves the Prometheus registry, which carries
//	the OpenTelemetry instrument exports.
//
// Inputs:
//
//	handlers - The handlers instance
//	cfg - Router configuration
//
// Outputs:
//
//	*gin.Engine - Ready to serve via Run or an http.Server
func NewRouter(handlers *Handlers, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.RequestLogging {
		router.Use(gin.Logger())
	}
	router.Use(otelgin.Middleware("hindsight-validator"))
	if cfg.RateLimit > 0 {
		router.Use(rateLimitMiddleware(cfg.RateLimit, cfg.RateBurst))
	}

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)

	if cfg.Metrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	return router
}

const (
	// limiterIdleTTL is how long a client's bucket survives without a
	// request before it is eligible for eviction.
	limiterIdleTTL = 10 * time.Minute

	// limiterSweepThreshold is the map size that triggers an idle sweep
	// on the next new-client insert.
	limiterSweepThreshold = 1024
)

// limiterEntry pairs a client's bucket with its last use, so idle
// clients can be swept.
type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// clientLimiter hands out one token bucket per client address. Idle
// entries are swept when the map grows past the threshold, so a
// long-running server does not hold a bucket per address forever.
type clientLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
}

func newClientLimiter(limit rate.Limit, burst int) *clientLimiter {
	return &clientLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   limit,
		burst:   burst,
	}
}

func (cl *clientLimiter) get(addr string) *rate.Limiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := time.Now()
	e, ok := cl.entries[addr]
	if !ok {
		if len(cl.entries) >= limiterSweepThreshold {
			cl.evictIdle(now)
		}
		e = &limiterEntry{lim: rate.NewLimiter(cl.limit, cl.burst)}
		cl.entries[addr] = e
	}
	e.lastSeen = now
	return e.lim
}

// evictIdle drops entries idle past the TTL. Caller holds mu.
func (cl *clientLimiter) evictIdle(now time.Time) {
	for addr, e := range cl.entries {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(cl.entries, addr)
		}
	}
}

// rateLimitMiddleware rejects clients that drain their token bucket
// with 429 and a Retry-After hint.
func rateLimitMiddleware(limit rate.Limit, burst int) gin.HandlerFunc {
	if burst <= 0 {
		burst = 1
	}
	limiters := newClientLimiter(limit, burst)

	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
