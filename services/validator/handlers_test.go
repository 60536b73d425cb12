// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/hindsightlabs/hindsight/services/validator/ledger"
)

func init() {
	// Set Gin to test mode to reduce noise
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	router := gin.New()
	handlers := NewHandlers(newTestService(t))
	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}

func setupLedgerRouter(t *testing.T) *gin.Engine {
	t.Helper()

	led, err := ledger.Open(ledger.InMemoryConfig())
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { _ = led.Close() })

	router := gin.New()
	handlers := NewHandlers(newTestService(t)).WithLedger(led)
	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req, _ := http.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func getPath(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()

	req, _ := http.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeReport(t *testing.T, w *httptest.ResponseRecorder) ReportResponse {
	t.Helper()

	var resp ReportResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Report == nil {
		t.Fatal("expected a report in the response")
	}
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var errResp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return errResp
}

func TestHandlers_HandleHealth(t *testing.T) {
	router := setupTestRouter(t)

	w := getPath(t, router, "/v1/health")
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %q", resp.Status)
	}
	if resp.Version != ServiceVersion {
		t.Errorf("expected version %q, got %q", ServiceVersion, resp.Version)
	}

	hasPython := false
	for _, lang := range resp.Languages {
		if lang == "python" {
			hasPython = true
		}
	}
	if !hasPython {
		t.Errorf("expected languages to include python, got %v", resp.Languages)
	}
}

func TestHandlers_RequestIDEcho(t *testing.T) {
	router := setupTestRouter(t)

	req, _ := http.NewRequest("POST", "/v1/validate/code",
		bytes.NewBufferString(`{"path": "strategy.py", "source": "x = 1\n"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "test-request-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "test-request-42" {
		t.Errorf("expected request id echoed back, got %q", got)
	}
}

func TestHandlers_HandleValidateCode(t *testing.T) {
	router := setupTestRouter(t)

	w := postJSON(t, router, "/v1/validate/code",
		`{"path": "strategy.py", "source": "position = df['signal']\n"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	resp := decodeReport(t, w)
	if !resp.HasStop {
		t.Error("expected a stop finding for the unlagged signal")
	}
	if resp.Passed {
		t.Error("expected the report to fail the gate")
	}
	if len(resp.Findings) == 0 {
		t.Fatal("expected findings")
	}
	if resp.Findings[0].RuleID != "HS001" {
		t.Errorf("expected HS001, got %q", resp.Findings[0].RuleID)
	}
	if resp.Verdict != nil {
		t.Error("expected no verdict without metrics")
	}
}

func TestHandlers_HandleValidateCode_Clean(t *testing.T) {
	router := setupTestRouter(t)

	w := postJSON(t, router, "/v1/validate/code",
		`{"path": "strategy.py", "source": "position = df['signal'].shift(1)\n"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decodeReport(t, w)
	if len(resp.Findings) != 0 {
		t.Errorf("expected no findings, got %d", len(resp.Findings))
	}
	if !resp.Passed {
		t.Error("expected the report to pass")
	}
}

func TestHandlers_HandleValidateCode_InvalidRequest(t *testing.T) {
	router := setupTestRouter(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "empty body",
			body:       "{}",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "missing source",
			body:       `{"path": "strategy.py"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "malformed json",
			body:       `{"path": `,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "unsupported extension",
			body:       `{"path": "strategy.R", "source": "x <- 1\n"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "UNSUPPORTED_LANGUAGE",
		},
		{
			name:       "syntax error",
			body:       `{"path": "strategy.py", "source": "pos = df['signal'\n"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "SYNTAX_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, router, "/v1/validate/code", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if got := decodeError(t, w).Code; got != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, got)
			}
		})
	}
}

func TestHandlers_HandleFixCode(t *testing.T) {
	router := setupTestRouter(t)

	w := postJSON(t, router, "/v1/validate/fix",
		`{"path": "strategy.py", "source": "position = df['signal']\n"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp FixCodeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if !resp.Fixed {
		t.Error("expected the source to be fixed")
	}
	if resp.Content != cleanSource {
		t.Errorf("expected lagged source, got %q", resp.Content)
	}
	if resp.Diff == "" {
		t.Error("expected a unified diff")
	}
	if len(resp.Findings) != 0 {
		t.Errorf("expected no remaining findings, got %d", len(resp.Findings))
	}
}

func TestHandlers_HandleFixCode_NothingToFix(t *testing.T) {
	router := setupTestRouter(t)

	w := postJSON(t, router, "/v1/validate/fix",
		`{"path": "strategy.py", "source": "position = df['signal'].shift(1)\n"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp FixCodeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp.Fixed {
		t.Error("expected nothing to fix")
	}
	if resp.Content != cleanSource {
		t.Errorf("expected the source unchanged, got %q", resp.Content)
	}
}

func TestHandlers_HandleEvaluateMetrics(t *testing.T) {
	router := setupTestRouter(t)

	body, err := json.Marshal(passingMetrics())
	if err != nil {
		t.Fatalf("failed to marshal metrics: %v", err)
	}

	w := postJSON(t, router, "/v1/validate/metrics", string(body))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	resp := decodeReport(t, w)
	if resp.Verdict == nil {
		t.Fatal("expected a verdict")
	}
	if !resp.Verdict.Passed {
		t.Error("expected the verdict to pass")
	}
	if resp.Strategy != "momentum_v1" {
		t.Errorf("expected strategy echoed, got %q", resp.Strategy)
	}
	if !resp.Passed {
		t.Error("expected the report to pass")
	}
}

func TestHandlers_HandleEvaluateMetrics_Rejections(t *testing.T) {
	router := setupTestRouter(t)

	tests := []struct {
		name       string
		mutate     func(m *MetricsRequest)
		wantStatus int
		wantCode   string
	}{
		{
			// The fraction binding rule fires before the domain sees
			// the record.
			name:       "win rate above one",
			mutate:     func(m *MetricsRequest) { m.WinRate = 1.5 },
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "single return",
			mutate:     func(m *MetricsRequest) { m.Returns = []float64{0.01} },
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "missing strategy",
			mutate:     func(m *MetricsRequest) { m.Strategy = "" },
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "negative trial count",
			mutate:     func(m *MetricsRequest) { m.TrialCount = -3 },
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "INVALID_METRICS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := passingMetrics()
			req := MetricsRequest{
				Strategy:     m.Strategy,
				Sharpe:       m.Sharpe,
				Returns:      m.Returns,
				TrialCount:   m.TrialCount,
				VariantCount: m.VariantCount,
				WinRate:      m.WinRate,
				MaxDrawdown:  m.MaxDrawdown,
			}
			tt.mutate(&req)

			body, err := json.Marshal(req)
			if err != nil {
				t.Fatalf("failed to marshal metrics: %v", err)
			}

			w := postJSON(t, router, "/v1/validate/metrics", string(body))
			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if got := decodeError(t, w).Code; got != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, got)
			}
		})
	}
}

func TestHandlers_HandleRun(t *testing.T) {
	router := setupTestRouter(t)

	payload := map[string]any{
		"path":    "strategy.py",
		"source":  cleanSource,
		"metrics": passingMetrics(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	w := postJSON(t, router, "/v1/validate/run", string(body))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	resp := decodeReport(t, w)
	if len(resp.Findings) != 0 {
		t.Errorf("expected no findings, got %d", len(resp.Findings))
	}
	if resp.Verdict == nil {
		t.Fatal("expected a verdict")
	}
	if !resp.Passed {
		t.Error("expected the report to pass")
	}
}

func TestHandlers_HandleRun_WithoutMetrics(t *testing.T) {
	router := setupTestRouter(t)

	w := postJSON(t, router, "/v1/validate/run",
		`{"path": "strategy.py", "source": "position = df['signal'].shift(1)\n"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decodeReport(t, w)
	if resp.Verdict != nil {
		t.Error("expected no verdict without metrics")
	}
	if !resp.Passed {
		t.Error("expected the report to pass")
	}
}

func TestHandlers_RunLedgerRoundTrip(t *testing.T) {
	router := setupLedgerRouter(t)

	w := postJSON(t, router, "/v1/validate/code",
		`{"path": "strategy.py", "source": "position = df['signal']\n"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	reportID := decodeReport(t, w).ID

	w = getPath(t, router, "/v1/runs")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var runs RunsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &runs); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if runs.Count != 1 {
		t.Fatalf("expected 1 recorded run, got %d", runs.Count)
	}
	if runs.Runs[0].ID != reportID {
		t.Errorf("expected recorded run %s, got %s", reportID, runs.Runs[0].ID)
	}

	w = getPath(t, router, "/v1/runs/"+reportID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if got := decodeReport(t, w).ID; got != reportID {
		t.Errorf("expected report %s, got %s", reportID, got)
	}
}

func TestHandlers_HandleGetRun_NotFound(t *testing.T) {
	router := setupLedgerRouter(t)

	w := getPath(t, router, "/v1/runs/0b0e9f7a-ffff-4d49-9134-d40d1e5ab101")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	if got := decodeError(t, w).Code; got != "RUN_NOT_FOUND" {
		t.Errorf("expected code RUN_NOT_FOUND, got %q", got)
	}
}

func TestHandlers_HandleListRuns_InvalidLimit(t *testing.T) {
	router := setupLedgerRouter(t)

	w := getPath(t, router, "/v1/runs?limit=soon")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if got := decodeError(t, w).Code; got != "INVALID_PARAMETER" {
		t.Errorf("expected code INVALID_PARAMETER, got %q", got)
	}
}

func TestHandlers_RunsRoutesRequireLedger(t *testing.T) {
	router := setupTestRouter(t)

	w := getPath(t, router, "/v1/runs")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d without a ledger, got %d", http.StatusNotFound, w.Code)
	}
}

func TestNewRouter_RateLimit(t *testing.T) {
	handlers := NewHandlers(newTestService(t))
	router := NewRouter(handlers, RouterConfig{
		RateLimit: 1,
		RateBurst: 1,
	})

	w := getPath(t, router, "/v1/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", w.Code)
	}

	w = getPath(t, router, "/v1/health")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request limited, got %d", w.Code)
	}
	if got := decodeError(t, w).Code; got != "RATE_LIMITED" {
		t.Errorf("expected code RATE_LIMITED, got %q", got)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After hint")
	}
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	handlers := NewHandlers(newTestService(t))
	router := NewRouter(handlers, RouterConfig{Metrics: true})

	w := getPath(t, router, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_") {
		t.Error("expected Prometheus exposition output")
	}
}
