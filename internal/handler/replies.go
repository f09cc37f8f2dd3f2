package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/guard"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/reply"
)

const outcomeBlocked = "blocked"

// ReplyRequest is the auto-reply request body. Message may be empty.
type ReplyRequest struct {
	Message string `json:"message"`
}

// ReplyResponse always carries user-facing text.
type ReplyResponse struct {
	Reply   string `json:"reply"`
	Outcome string `json:"outcome"`
}

// ReplyGenerator answers one user message.
type ReplyGenerator interface {
	Generate(ctx context.Context, message string) reply.Result
	Fallbacks() reply.Fallbacks
}

// ReplyHandler serves persona auto-replies.
type ReplyHandler struct {
	responder ReplyGenerator
	guard     guard.Guard
	outcomes  reply.OutcomeRecorder
	logger    *slog.Logger
}

// NewReplyHandler creates a ReplyHandler. injectionGuard and outcomes may be nil.
func NewReplyHandler(responder ReplyGenerator, injectionGuard guard.Guard, outcomes reply.OutcomeRecorder, logger *slog.Logger) *ReplyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplyHandler{
		responder: responder,
		guard:     injectionGuard,
		outcomes:  outcomes,
		logger:    logger,
	}
}

// RegisterRoutes registers reply routes.
func (h *ReplyHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/api/replies", h.handleReply)
}

func (h *ReplyHandler) handleReply(c *gin.Context) {
	var req ReplyRequest
	if !bindJSONAllowEmpty(c, &req) {
		return
	}

	fallbacks := h.responder.Fallbacks()
	if h.guard != nil && h.guard.IsMalicious(req.Message) {
		if h.outcomes != nil {
			h.outcomes.RecordGeneration("reply", outcomeBlocked)
		}
		h.logger.Warn("reply_message_blocked")
		busy := reply.Result{Outcome: reply.OutcomeFailed}.Display(fallbacks)
		c.JSON(http.StatusOK, ReplyResponse{Reply: busy, Outcome: outcomeBlocked})
		return
	}

	result := h.responder.Generate(c.Request.Context(), req.Message)
	c.JSON(http.StatusOK, ReplyResponse{
		Reply:   result.Display(fallbacks),
		Outcome: string(result.Outcome),
	})
}
