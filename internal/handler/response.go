package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/handler/shared"
)

func writeError(c *gin.Context, err error) {
	shared.WriteError(c, err)
}

// failRequest logs err under domain and renders it.
func failRequest(c *gin.Context, logger *slog.Logger, domain string, err error) {
	shared.LogError(logger, domain, err)
	shared.WriteError(c, err)
}

func bindJSON(c *gin.Context, out any) bool {
	return shared.BindJSON(c, out)
}

// bindJSONAllowEmpty treats a missing body as the zero request.
func bindJSONAllowEmpty(c *gin.Context, out any) bool {
	return shared.BindJSONAllowEmpty(c, out)
}
