package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/settings"
)

// SettingsStore persists dashboard settings.
type SettingsStore interface {
	Get(ctx context.Context) (settings.Settings, error)
	Update(ctx context.Context, fn func(settings.Settings) settings.Settings) (settings.Settings, error)
	SetAutomation(ctx context.Context, enabled bool) (settings.Settings, error)
}

// SettingsRequest is a partial update; omitted fields keep their stored value.
type SettingsRequest struct {
	TargetChannel     *string   `json:"target_channel"`
	SourceChannels    *[]string `json:"source_channels"`
	AutomationEnabled *bool     `json:"automation_enabled"`
	AutoCopy          *bool     `json:"auto_copy"`
	SkipDuplicates    *bool     `json:"skip_duplicates"`
	WatermarkRemoval  *bool     `json:"watermark_removal"`
}

func (r SettingsRequest) apply(current settings.Settings) settings.Settings {
	if r.TargetChannel != nil {
		current.TargetChannel = *r.TargetChannel
	}
	if r.SourceChannels != nil {
		current.SourceChannels = append([]string(nil), (*r.SourceChannels)...)
	}
	if r.AutomationEnabled != nil {
		current.AutomationEnabled = *r.AutomationEnabled
	}
	if r.AutoCopy != nil {
		current.AutoCopy = *r.AutoCopy
	}
	if r.SkipDuplicates != nil {
		current.SkipDuplicates = *r.SkipDuplicates
	}
	if r.WatermarkRemoval != nil {
		current.WatermarkRemoval = *r.WatermarkRemoval
	}
	return current
}

// SettingsHandler serves the settings and automation toggle.
type SettingsHandler struct {
	store  SettingsStore
	logger *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(store SettingsStore, logger *slog.Logger) *SettingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsHandler{store: store, logger: logger}
}

// RegisterRoutes registers settings routes.
func (h *SettingsHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/settings", h.handleGet)
	router.PUT("/api/settings", h.handleUpdate)

	automation := router.Group("/api/automation")
	automation.POST("/start", h.handleAutomation(true))
	automation.POST("/stop", h.handleAutomation(false))
}

func (h *SettingsHandler) handleGet(c *gin.Context) {
	current, err := h.store.Get(c.Request.Context())
	if err != nil {
		failRequest(c, h.logger, "settings", err)
		return
	}
	c.JSON(http.StatusOK, current)
}

func (h *SettingsHandler) handleUpdate(c *gin.Context) {
	var req SettingsRequest
	if !bindJSON(c, &req) {
		return
	}

	saved, err := h.store.Update(c.Request.Context(), req.apply)
	if err != nil {
		failRequest(c, h.logger, "settings", err)
		return
	}
	h.logger.Info("settings_updated",
		"target_channel", saved.TargetChannel,
		"sources", len(saved.SourceChannels),
		"automation", saved.AutomationEnabled,
	)
	c.JSON(http.StatusOK, saved)
}

func (h *SettingsHandler) handleAutomation(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		saved, err := h.store.SetAutomation(c.Request.Context(), enabled)
		if err != nil {
			failRequest(c, h.logger, "automation", err)
			return
		}
		h.logger.Info("automation_toggled", "enabled", enabled)
		c.JSON(http.StatusOK, saved)
	}
}
