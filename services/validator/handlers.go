// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validator

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	v10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hindsightlabs/hindsight/services/validator/ast"
	"github.com/hindsightlabs/hindsight/services/validator/autofix"
	"github.com/hindsightlabs/hindsight/services/validator/ledger"
	"github.com/hindsightlabs/hindsight/services/validator/report"
	"github.com/hindsightlabs/hindsight/services/validator/stats"
)

// ServiceVersion is the validator service version.
const ServiceVersion = "0.1.0"

// ========== REQUEST / RESPONSE TYPES ==========

// ValidateCodeRequest is the body for POST /v1/validate/code.
type ValidateCodeRequest struct {
	// Path names the unit and selects the parser by extension.
	Path string `json:"path" binding:"required"`

	// Source is the raw strategy source.
	Source string `json:"source" binding:"required"`
}

// FixCodeRequest is the body for POST /v1/validate/fix.
type FixCodeRequest struct {
	Path   string `json:"path" binding:"required"`
	Source string `json:"source" binding:"required"`
}

// MetricsRequest is the body for POST /v1/validate/metrics.
//
// Numeric ranges are owned by the domain validation so rejections
// carry the field name; the binding layer checks structure only.
type MetricsRequest struct {
	// Strategy identifies the backtest run.
	Strategy string `json:"strategy" binding:"required"`

	// Sharpe is the headline Sharpe ratio as reported.
	Sharpe float64 `json:"sharpe"`

	// Returns is the per-period return series.
	Returns []float64 `json:"returns" binding:"required,min=2"`

	// TrialCount is the number of strategy configurations tried.
	TrialCount int `json:"trial_count"`

	// VariantCount is the number of variants behind the headline run.
	VariantCount int `json:"variant_count"`

	// WinRate is the fraction of winning periods.
	WinRate float64 `json:"win_rate" binding:"omitempty,fraction"`

	// MaxDrawdown is the maximum peak-to-trough loss.
	MaxDrawdown float64 `json:"max_drawdown"`

	// VariantReturns is the optional per-variant return matrix,
	// time-major, for overfitting estimation.
	VariantReturns [][]float64 `json:"variant_returns,omitempty"`
}

// RunRequest is the body for POST /v1/validate/run.
type RunRequest struct {
	Path   string `json:"path" binding:"required"`
	Source string `json:"source" binding:"required"`

	// Metrics is optional; nil skips statistical evaluation.
	Metrics *MetricsRequest `json:"metrics,omitempty"`
}

// ReportResponse is a report with the policy-gate fields flattened in.
type ReportResponse struct {
	*report.Report

	// Passed is the policy-gate outcome.
	Passed bool `json:"passed"`

	// HasStop reports whether any finding carries STOP severity.
	HasStop bool `json:"has_stop"`
}

// FixCodeResponse is an autofix result with the rewritten source
// included as a string.
type FixCodeResponse struct {
	*autofix.Result

	// Content is the rewritten source.
	Content string `json:"content"`
}

// RunsResponse is the body for GET /v1/runs.
type RunsResponse struct {
	Runs  []report.Report `json:"runs"`
	Count int             `json:"count"`
}

// HealthResponse is the body for GET /v1/health.
type HealthResponse struct {
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	Languages []string `json:"languages"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

// ========== HANDLERS ==========

// Handlers contains the HTTP handlers for the validator service.
type Handlers struct {
	svc    *Service
	ledger *ledger.Ledger
}

// fractionOnce guards the one-time binding validator registration.
var fractionOnce sync.Once

// registerFraction teaches gin's binding validator the "fraction"
// rule: a float in [0, 1].
func registerFraction() {
	fractionOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*v10.Validate); ok {
			_ = v.RegisterValidation("fraction", func(fl v10.FieldLevel) bool {
				f := fl.Field().Float()
				return f >= 0 && f <= 1
			})
		}
	})
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	registerFraction()
	return &Handlers{svc: svc}
}

// WithLedger sets the run ledger. When configured, every report the
// surface produces is appended, and the /v1/runs endpoints are
// registered.
func (h *Handlers) WithLedger(led *ledger.Ledger) *Handlers {
	h.ledger = led
	return h
}

// HandleValidateCode handles POST /v1/validate/code.
//
// Description:
//
//	Analyzes one source unit for temporal-bias defects and returns the
//	findings as a report. The source is never modified.
//
// Request Body:
//
//	ValidateCodeRequest
//
// Response:
//
//	200 OK: ReportResponse
//	400 Bad Request: Malformed body
//	422 Unprocessable Entity: Unsupported language or unparsable source
func (h *Handlers) HandleValidateCode(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleValidateCode")

	var req ValidateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	rep, err := h.svc.ValidateCode(c.Request.Context(), req.Path, []byte(req.Source))
	if err != nil {
		respondError(c, logger, err, "VALIDATE_FAILED")
		return
	}

	h.record(c, logger, rep)

	logger.Info("Unit validated",
		"path", req.Path,
		"findings", len(rep.Findings),
		"passed", rep.Passed())
	c.JSON(http.StatusOK, newReportResponse(rep))
}

// HandleFixCode handles POST /v1/validate/fix.
//
// Description:
//
//	Analyzes a unit and applies one rewrite pass over the fixable
//	findings. The response carries the rewritten source and a unified
//	diff; nothing is written to disk.
//
// Request Body:
//
//	FixCodeRequest
//
// Response:
//
//	200 OK: FixCodeResponse
//	400 Bad Request: Malformed body
//	422 Unprocessable Entity: Unparsable source, overlapping fixes, or
//	    failed verification
func (h *Handlers) HandleFixCode(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleFixCode")

	var req FixCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	res, err := h.svc.FixCode(c.Request.Context(), req.Path, []byte(req.Source))
	if err != nil {
		respondError(c, logger, err, "FIX_FAILED")
		return
	}

	logger.Info("Fix pass completed",
		"path", req.Path,
		"applied", len(res.Applied),
		"remaining", len(res.Findings))
	c.JSON(http.StatusOK, FixCodeResponse{
		Result:  res,
		Content: string(res.Content),
	})
}

// HandleEvaluateMetrics handles POST /v1/validate/metrics.
//
// Description:
//
//	Judges a backtest metrics record against the multiple-testing
//	thresholds and returns the verdict as a report.
//
// Request Body:
//
//	MetricsRequest
//
// Response:
//
//	200 OK: ReportResponse
//	400 Bad Request: Malformed body
//	422 Unprocessable Entity: Invalid or insufficient metrics
func (h *Handlers) HandleEvaluateMetrics(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleEvaluateMetrics")

	var req MetricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	metrics := req.metrics()
	if err := metrics.Validate(); err != nil {
		logger.Warn("Invalid metrics record", "error", err)
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_METRICS",
		})
		return
	}

	rep, err := h.svc.EvaluateMetrics(c.Request.Context(), metrics)
	if err != nil {
		respondError(c, logger, err, "METRICS_FAILED")
		return
	}

	h.record(c, logger, rep)

	logger.Info("Metrics evaluated",
		"strategy", req.Strategy,
		"passed", rep.Verdict.Passed)
	c.JSON(http.StatusOK, newReportResponse(rep))
}

// HandleRun handles POST /v1/validate/run.
//
// Description:
//
//	Runs the full pipeline: code analysis plus, when a metrics record
//	is present, statistical evaluation. Findings and verdict land in
//	one report so the policy gate reads a single record.
//
// Request Body:
//
//	RunRequest
//
// Response:
//
//	200 OK: ReportResponse
//	400 Bad Request: Malformed body
//	422 Unprocessable Entity: Unparsable source or invalid metrics
func (h *Handlers) HandleRun(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRun")

	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	var metrics *stats.BacktestMetrics
	if req.Metrics != nil {
		metrics = req.Metrics.metrics()
		if err := metrics.Validate(); err != nil {
			logger.Warn("Invalid metrics record", "error", err)
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error: err.Error(),
				Code:  "INVALID_METRICS",
			})
			return
		}
	}

	rep, err := h.svc.Run(c.Request.Context(), req.Path, []byte(req.Source), metrics)
	if err != nil {
		respondError(c, logger, err, "RUN_FAILED")
		return
	}

	h.record(c, logger, rep)

	logger.Info("Run completed",
		"path", req.Path,
		"findings", len(rep.Findings),
		"passed", rep.Passed())
	c.JSON(http.StatusOK, newReportResponse(rep))
}

// HandleListRuns handles GET /v1/runs.
//
// Description:
//
//	Lists recorded reports, newest first.
//
// Query Parameters:
//
//	limit: Maximum number of runs to return (optional, default 20,
//	       0 returns all)
//
// Response:
//
//	200 OK: RunsResponse
//	400 Bad Request: Malformed limit
func (h *Handlers) HandleListRuns(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListRuns")

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			logger.Warn("Invalid limit parameter", "limit", raw)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "limit must be an integer",
				Code:  "INVALID_PARAMETER",
			})
			return
		}
		limit = parsed
	}

	runs, err := h.ledger.List(c.Request.Context(), limit)
	if err != nil {
		logger.Error("Failed to list runs", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "LEDGER_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, RunsResponse{Runs: runs, Count: len(runs)})
}

// HandleGetRun handles GET /v1/runs/:id.
//
// Description:
//
//	Retrieves one recorded report by id.
//
// Path Parameters:
//
//	id: Report id as returned at validation time
//
// Response:
//
//	200 OK: ReportResponse
//	404 Not Found: No run with the id
func (h *Handlers) HandleGetRun(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetRun")

	rep, err := h.ledger.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: err.Error(),
				Code:  "RUN_NOT_FOUND",
			})
			return
		}
		logger.Error("Failed to load run", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "LEDGER_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, newReportResponse(rep))
}

// HandleHealth handles GET /v1/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   ServiceVersion,
		Languages: h.svc.Languages(),
	})
}

// ========== HELPERS ==========

// metrics converts the request body to the domain record.
func (r *MetricsRequest) metrics() *stats.BacktestMetrics {
	return &stats.BacktestMetrics{
		Strategy:       r.Strategy,
		Sharpe:         r.Sharpe,
		Returns:        r.Returns,
		TrialCount:     r.TrialCount,
		VariantCount:   r.VariantCount,
		WinRate:        r.WinRate,
		MaxDrawdown:    r.MaxDrawdown,
		VariantReturns: r.VariantReturns,
	}
}

func newReportResponse(rep *report.Report) ReportResponse {
	return ReportResponse{
		Report:  rep,
		Passed:  rep.Passed(),
		HasStop: rep.HasStop(),
	}
}

// record appends the report to the ledger when one is configured. A
// failed append is logged, not surfaced: the validation itself
// succeeded.
func (h *Handlers) record(c *gin.Context, logger *slog.Logger, rep *report.Report) {
	if h.ledger == nil {
		return
	}
	if err := h.ledger.Append(c.Request.Context(), rep); err != nil {
		logger.Error("Failed to record report", "report_id", rep.ID, "error", err)
	}
}

// respondError maps a domain failure to an HTTP response.
func respondError(c *gin.Context, logger *slog.Logger, err error, fallback string) {
	status, code := errorStatus(err, fallback)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err, "code", code)
	} else {
		logger.Warn("Request rejected", "error", err, "code", code)
	}
	c.JSON(status, ErrorResponse{
		Error: err.Error(),
		Code:  code,
	})
}

// errorStatus classifies domain errors into a status and taxonomy
// code. Unclassified errors fall back to 500 with the handler's code.
func errorStatus(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, ast.ErrUnsupportedLanguage):
		return http.StatusUnprocessableEntity, "UNSUPPORTED_LANGUAGE"
	case ast.IsSyntaxError(err):
		return http.StatusUnprocessableEntity, "SYNTAX_ERROR"
	case errors.Is(err, ast.ErrFileTooLarge):
		return http.StatusUnprocessableEntity, "SOURCE_TOO_LARGE"
	case errors.Is(err, ast.ErrInvalidContent):
		return http.StatusUnprocessableEntity, "INVALID_SOURCE"
	case ast.IsParseError(err):
		return http.StatusUnprocessableEntity, "PARSE_ERROR"
	case stats.IsInsufficientData(err):
		return http.StatusUnprocessableEntity, "INSUFFICIENT_DATA"
	case autofix.IsOverlapError(err):
		return http.StatusUnprocessableEntity, "FIX_OVERLAP"
	case autofix.IsVerificationError(err):
		return http.StatusUnprocessableEntity, "FIX_VERIFICATION_FAILED"
	case stats.IsCancelled(err),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "CANCELLED"
	default:
		return http.StatusInternalServerError, fallback
	}
}

// getOrCreateRequestID returns the X-Request-ID header, minting one
// when absent, and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
