package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/httperror"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/usage"
)

const (
	defaultRecentDays = 7
	defaultTotalDays  = 30
	maxUsageDays      = 366
	usageDateLayout   = "2006-01-02"
)

// DailyUsageResponse is one day of token usage.
type DailyUsageResponse struct {
	UsageDate       string `json:"usage_date"`
	InputTokens     int64  `json:"input_tokens"`
	OutputTokens    int64  `json:"output_tokens"`
	TotalTokens     int64  `json:"total_tokens"`
	ReasoningTokens int64  `json:"reasoning_tokens"`
	RequestCount    int64  `json:"request_count"`
	Model           string `json:"model"`
}

// UsageListResponse lists recent days with totals.
type UsageListResponse struct {
	Usages            []DailyUsageResponse `json:"usages"`
	TotalInputTokens  int64                `json:"total_input_tokens"`
	TotalOutputTokens int64                `json:"total_output_tokens"`
	TotalTokens       int64                `json:"total_tokens"`
	TotalRequestCount int64                `json:"total_request_count"`
	Model             string               `json:"model"`
}

// UsageResponse is a token sum.
type UsageResponse struct {
	InputTokens     int64  `json:"input_tokens"`
	OutputTokens    int64  `json:"output_tokens"`
	TotalTokens     int64  `json:"total_tokens"`
	ReasoningTokens int64  `json:"reasoning_tokens"`
	Model           string `json:"model"`
}

// OperationUsageResponse is the usage of one generator.
type OperationUsageResponse struct {
	Operation       string `json:"operation"`
	Model           string `json:"model"`
	InputTokens     int64  `json:"input_tokens"`
	OutputTokens    int64  `json:"output_tokens"`
	TotalTokens     int64  `json:"total_tokens"`
	ReasoningTokens int64  `json:"reasoning_tokens"`
	RequestCount    int64  `json:"request_count"`
}

// UsageHandler serves token usage reports.
type UsageHandler struct {
	cfg    *config.Config
	repo   usage.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewUsageHandler creates a UsageHandler.
func NewUsageHandler(cfg *config.Config, repo usage.Store, logger *slog.Logger) *UsageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageHandler{
		cfg:    cfg,
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// RegisterRoutes registers usage routes.
func (h *UsageHandler) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/usage")
	group.GET("/daily", h.handleDaily)
	group.GET("/recent", h.handleRecent)
	group.GET("/total", h.handleTotal)
	group.GET("/operations", h.handleOperations)
}

func (h *UsageHandler) handleDaily(c *gin.Context) {
	usageRow, err := h.repo.GetDailyUsage(c.Request.Context(), time.Time{})
	if err != nil {
		failRequest(c, h.logger, "usage", err)
		return
	}

	c.JSON(http.StatusOK, h.buildDailyResponse(usageRow))
}

func (h *UsageHandler) handleRecent(c *gin.Context) {
	days, ok := parseDays(c, defaultRecentDays)
	if !ok {
		return
	}

	usages, err := h.repo.GetRecentUsage(c.Request.Context(), days)
	if err != nil {
		failRequest(c, h.logger, "usage", err)
		return
	}

	c.JSON(http.StatusOK, h.buildUsageListResponse(usages))
}

func (h *UsageHandler) handleTotal(c *gin.Context) {
	days, ok := parseDays(c, defaultTotalDays)
	if !ok {
		return
	}

	usageRow, err := h.repo.GetTotalUsage(c.Request.Context(), days)
	if err != nil {
		failRequest(c, h.logger, "usage", err)
		return
	}

	c.JSON(http.StatusOK, UsageResponse{
		InputTokens:     usageRow.InputTokens,
		OutputTokens:    usageRow.OutputTokens,
		TotalTokens:     usageRow.TotalTokens(),
		ReasoningTokens: usageRow.ReasoningTokens,
		Model:           h.cfg.Gemini.DefaultModel,
	})
}

func (h *UsageHandler) handleOperations(c *gin.Context) {
	days, ok := parseDays(c, defaultTotalDays)
	if !ok {
		return
	}

	rows, err := h.repo.GetOperationUsage(c.Request.Context(), days)
	if err != nil {
		failRequest(c, h.logger, "usage", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"operations": h.buildOperationResponses(rows)})
}

func (h *UsageHandler) buildDailyResponse(usageRow *usage.DailyUsage) DailyUsageResponse {
	model := h.cfg.Gemini.DefaultModel
	if usageRow == nil {
		return DailyUsageResponse{
			UsageDate: h.today().Format(usageDateLayout),
			Model:     model,
		}
	}

	return DailyUsageResponse{
		UsageDate:       usageRow.UsageDate.Format(usageDateLayout),
		InputTokens:     usageRow.InputTokens,
		OutputTokens:    usageRow.OutputTokens,
		TotalTokens:     usageRow.TotalTokens(),
		ReasoningTokens: usageRow.ReasoningTokens,
		RequestCount:    usageRow.RequestCount,
		Model:           model,
	}
}

func (h *UsageHandler) buildUsageListResponse(usages []usage.DailyUsage) UsageListResponse {
	model := h.cfg.Gemini.DefaultModel
	response := UsageListResponse{
		Usages: make([]DailyUsageResponse, 0, len(usages)),
		Model:  model,
	}

	for _, row := range usages {
		response.Usages = append(response.Usages, DailyUsageResponse{
			UsageDate:       row.UsageDate.Format(usageDateLayout),
			InputTokens:     row.InputTokens,
			OutputTokens:    row.OutputTokens,
			TotalTokens:     row.TotalTokens(),
			ReasoningTokens: row.ReasoningTokens,
			RequestCount:    row.RequestCount,
			Model:           model,
		})
		response.TotalInputTokens += row.InputTokens
		response.TotalOutputTokens += row.OutputTokens
		response.TotalTokens += row.TotalTokens()
		response.TotalRequestCount += row.RequestCount
	}

	return response
}

func (h *UsageHandler) buildOperationResponses(rows []usage.OperationUsage) []OperationUsageResponse {
	out := make([]OperationUsageResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, OperationUsageResponse{
			Operation:       row.Operation,
			Model:           h.modelForOperation(row.Operation),
			InputTokens:     row.InputTokens,
			OutputTokens:    row.OutputTokens,
			TotalTokens:     row.TotalTokens(),
			ReasoningTokens: row.ReasoningTokens,
			RequestCount:    row.RequestCount,
		})
	}
	return out
}

func (h *UsageHandler) modelForOperation(operation string) string {
	switch operation {
	case usage.OperationCaption:
		return h.cfg.Gemini.ModelForTask(config.TaskCaption)
	case usage.OperationReply:
		return h.cfg.Gemini.ModelForTask(config.TaskReply)
	default:
		return h.cfg.Gemini.DefaultModel
	}
}

func (h *UsageHandler) today() time.Time {
	if h.now == nil {
		return time.Now()
	}
	return h.now()
}

func parseDays(c *gin.Context, defaultDays int) (int, bool) {
	raw := c.Query("days")
	if raw == "" {
		return defaultDays, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		writeError(c, httperror.NewInvalidInput("days must be a positive integer"))
		return 0, false
	}
	return min(parsed, maxUsageDays), true
}
