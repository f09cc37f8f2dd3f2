package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/health"
)

// HealthCollector reports component health.
type HealthCollector interface {
	Collect(ctx context.Context, deepChecks bool) health.Response
}

// ModelConfigResponse describes the effective Gemini settings.
type ModelConfigResponse struct {
	ModelDefault     string  `json:"model_default"`
	ModelCaption     string  `json:"model_caption"`
	ModelReply       string  `json:"model_reply"`
	ThinkingCaption  string  `json:"thinking_caption"`
	ThinkingReply    string  `json:"thinking_reply"`
	ReplyTemperature float64 `json:"reply_temperature"`
	CaptionLanguage  string  `json:"caption_language"`
	TimeoutSeconds   int     `json:"timeout_seconds"`
	HTTP2Enabled     bool    `json:"http2_enabled"`
	TransportMode    string  `json:"transport_mode"`
}

// RegisterHealthRoutes registers health, model and Prometheus routes.
// metricsHandler may be nil, in which case /metrics is not served.
func RegisterHealthRoutes(router *gin.Engine, cfg *config.Config, checker HealthCollector, metricsHandler http.Handler) {
	router.GET("/health", func(c *gin.Context) {
		// Liveness only; never touches valkey or the database.
		c.JSON(http.StatusOK, checker.Collect(c.Request.Context(), false))
	})

	router.GET("/health/ready", func(c *gin.Context) {
		payload := checker.Collect(c.Request.Context(), true)
		status := http.StatusOK
		if payload.Status != health.StatusOK {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, payload)
	})

	router.GET("/health/models", func(c *gin.Context) {
		c.JSON(http.StatusOK, buildModelConfig(cfg))
	})

	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}
}

func buildModelConfig(cfg *config.Config) ModelConfigResponse {
	transportMode := "h1"
	if cfg.HTTP.HTTP2Enabled {
		transportMode = "h2c"
	}

	return ModelConfigResponse{
		ModelDefault:     cfg.Gemini.DefaultModel,
		ModelCaption:     cfg.Gemini.ModelForTask(config.TaskCaption),
		ModelReply:       cfg.Gemini.ModelForTask(config.TaskReply),
		ThinkingCaption:  cfg.Gemini.Thinking.Level(config.TaskCaption),
		ThinkingReply:    cfg.Gemini.Thinking.Level(config.TaskReply),
		ReplyTemperature: cfg.Reply.Temperature,
		CaptionLanguage:  cfg.Caption.Language,
		TimeoutSeconds:   cfg.Gemini.TimeoutSeconds,
		HTTP2Enabled:     cfg.HTTP.HTTP2Enabled,
		TransportMode:    transportMode,
	}
}
