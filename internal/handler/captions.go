package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/caption"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/domain/kino"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/guard"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/handler/shared"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/httperror"
)

const logTitleRunes = 120

// CaptionRequest is the caption request body.
type CaptionRequest struct {
	Title string `json:"title"`
}

// CaptionResponse reports one generation. Caption is null unless Generated.
type CaptionResponse struct {
	Generated bool          `json:"generated"`
	Caption   *kino.Caption `json:"caption"`
	PostText  string        `json:"post_text"`
	Model     string        `json:"model"`
	Failure   string        `json:"failure,omitempty"`
}

// CaptionGenerator produces one caption per call.
type CaptionGenerator interface {
	Generate(ctx context.Context, title string) caption.Result
}

// CaptionHandler serves caption generation.
type CaptionHandler struct {
	generator CaptionGenerator
	guard     guard.Guard
	logger    *slog.Logger
}

// NewCaptionHandler creates a CaptionHandler. injectionGuard may be nil.
func NewCaptionHandler(generator CaptionGenerator, injectionGuard guard.Guard, logger *slog.Logger) *CaptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptionHandler{
		generator: generator,
		guard:     injectionGuard,
		logger:    logger,
	}
}

// RegisterRoutes registers caption routes.
func (h *CaptionHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/api/captions", h.handleGenerate)
}

func (h *CaptionHandler) handleGenerate(c *gin.Context) {
	var req CaptionRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(c, httperror.NewMissingField("title"))
		return
	}
	if h.guard != nil {
		if err := h.guard.EnsureSafe(req.Title); err != nil {
			h.logger.Warn("caption_title_blocked", "title", shared.TrimRunes(req.Title, logTitleRunes))
			writeError(c, err)
			return
		}
	}

	result := h.generator.Generate(c.Request.Context(), req.Title)
	c.JSON(http.StatusOK, buildCaptionResponse(result))
}

func buildCaptionResponse(result caption.Result) CaptionResponse {
	if !result.OK {
		return CaptionResponse{
			Generated: false,
			Model:     result.Model,
			Failure:   string(result.Failure),
		}
	}
	generated := result.Caption
	return CaptionResponse{
		Generated: true,
		Caption:   &generated,
		PostText:  generated.PostText(),
		Model:     result.Model,
	}
}
