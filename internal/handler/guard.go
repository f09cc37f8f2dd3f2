package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/guard"
)

// GuardRequest is the screening request body.
type GuardRequest struct {
	InputText string `json:"input_text" binding:"required"`
}

// GuardResponse is a full evaluation.
type GuardResponse struct {
	Score     float64       `json:"score"`
	Malicious bool          `json:"malicious"`
	Threshold float64       `json:"threshold"`
	Hits      []guard.Match `json:"hits"`
}

// GuardHandler lets operators test text against the input guard.
type GuardHandler struct {
	guard guard.Guard
}

// NewGuardHandler creates a GuardHandler.
func NewGuardHandler(injectionGuard guard.Guard) *GuardHandler {
	return &GuardHandler{guard: injectionGuard}
}

// RegisterRoutes registers guard routes.
func (h *GuardHandler) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/guard")
	group.POST("/evaluations", h.handleEvaluate)
	group.POST("/checks", h.handleCheck)
}

func (h *GuardHandler) handleEvaluate(c *gin.Context) {
	var req GuardRequest
	if !bindJSON(c, &req) {
		return
	}

	evaluation := h.guard.Evaluate(req.InputText)
	hits := evaluation.Hits
	if hits == nil {
		hits = []guard.Match{}
	}
	c.JSON(http.StatusOK, GuardResponse{
		Score:     evaluation.Score,
		Malicious: evaluation.Malicious(),
		Threshold: evaluation.Threshold,
		Hits:      hits,
	})
}

func (h *GuardHandler) handleCheck(c *gin.Context) {
	var req GuardRequest
	if !bindJSON(c, &req) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"malicious": h.guard.IsMalicious(req.InputText)})
}
