package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/llm"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/metrics"
)

func TestLLMRoutes(t *testing.T) {
	store := metrics.NewStore()
	store.RecordSuccess(200*time.Millisecond, llm.Usage{InputTokens: 30, OutputTokens: 12, ReasoningTokens: 5})
	store.RecordError(100 * time.Millisecond)

	cfg := &config.Config{Gemini: config.GeminiConfig{DefaultModel: "gemini-2.5-flash"}}
	router := newTestRouter()
	NewLLMHandler(cfg, store).RegisterRoutes(router)

	resp := doJSON(router, http.MethodGet, "/api/llm/metrics", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var snapshot map[string]float64
	decodeBody(t, resp, &snapshot)
	if snapshot["total_calls"] != 2 || snapshot["total_errors"] != 1 || snapshot["total_tokens"] != 42 {
		t.Fatalf("unexpected snapshot: %v", snapshot)
	}

	resp = doJSON(router, http.MethodGet, "/api/llm/usage", "")
	var totals UsageResponse
	decodeBody(t, resp, &totals)
	if totals.InputTokens != 30 || totals.TotalTokens != 42 || totals.ReasoningTokens != 5 || totals.Model != "gemini-2.5-flash" {
		t.Fatalf("unexpected usage: %+v", totals)
	}
}
