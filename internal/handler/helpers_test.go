package handler

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/guard"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/httperror"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func doJSON(router http.Handler, method string, path string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", resp.Body.String(), err)
	}
}

func assertErrorCode(t *testing.T, resp *httptest.ResponseRecorder, status int, code httperror.ErrorCode) {
	t.Helper()
	if resp.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, resp.Code, resp.Body.String())
	}
	var payload httperror.ErrorResponse
	decodeBody(t, resp, &payload)
	if payload.ErrorCode != string(code) {
		t.Fatalf("expected %s, got %s", code, payload.ErrorCode)
	}
}

// keywordGuard blocks any input containing word.
type keywordGuard struct {
	word string
}

func (g keywordGuard) Evaluate(input string) guard.Evaluation {
	if g.word != "" && strings.Contains(strings.ToLower(input), g.word) {
		return guard.Evaluation{Score: 1, Threshold: 0.85, Hits: []guard.Match{{ID: "keyword", Weight: 1}}}
	}
	return guard.Evaluation{Threshold: 0.85}
}

func (g keywordGuard) EnsureSafe(input string) error {
	evaluation := g.Evaluate(input)
	if evaluation.Malicious() {
		return &guard.BlockedError{Score: evaluation.Score, Threshold: evaluation.Threshold}
	}
	return nil
}

func (g keywordGuard) IsMalicious(input string) bool {
	return g.Evaluate(input).Malicious()
}

type outcomeRecorder struct {
	mu       sync.Mutex
	recorded []string
}

func (r *outcomeRecorder) RecordGeneration(operation string, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, operation+":"+outcome)
}

func (r *outcomeRecorder) Recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.recorded...)
}
