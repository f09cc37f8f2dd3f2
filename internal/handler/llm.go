package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/llm"
)

// CallStats exposes in-process Gemini call counters.
type CallStats interface {
	Snapshot() map[string]float64
	UsageTotals() llm.Usage
}

// LLMHandler serves in-process Gemini statistics.
type LLMHandler struct {
	cfg   *config.Config
	stats CallStats
}

// NewLLMHandler creates an LLMHandler.
func NewLLMHandler(cfg *config.Config, stats CallStats) *LLMHandler {
	return &LLMHandler{cfg: cfg, stats: stats}
}

// RegisterRoutes registers LLM routes.
func (h *LLMHandler) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/llm")
	group.GET("/metrics", h.handleMetrics)
	group.GET("/usage", h.handleUsage)
}

func (h *LLMHandler) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.stats.Snapshot())
}

// handleUsage reports tokens since process start; /api/usage has the persisted history.
func (h *LLMHandler) handleUsage(c *gin.Context) {
	totals := h.stats.UsageTotals()
	c.JSON(http.StatusOK, UsageResponse{
		InputTokens:     int64(totals.InputTokens),
		OutputTokens:    int64(totals.OutputTokens),
		TotalTokens:     int64(totals.TotalTokens),
		ReasoningTokens: int64(totals.ReasoningTokens),
		Model:           h.cfg.Gemini.DefaultModel,
	})
}
