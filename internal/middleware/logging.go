package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one http_request line per request: info for success,
// warn for 4xx, error for 5xx. Successful probe and scrape requests are skipped.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return func(c *gin.Context) {
		startedAt := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest && len(c.Errors) == 0 && isNoisyPath(path) {
			return
		}

		fields := []any{
			"request_id", GetRequestID(c),
			"method", method,
			"path", path,
			"route", c.FullPath(),
			"status", status,
			"latency", time.Since(startedAt),
			"bytes", c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		ctx := c.Request.Context()
		switch {
		case status >= http.StatusInternalServerError:
			logger.ErrorContext(ctx, "http_request", fields...)
		case status >= http.StatusBadRequest:
			logger.WarnContext(ctx, "http_request", fields...)
		default:
			logger.InfoContext(ctx, "http_request", fields...)
		}
	}
}

func isNoisyPath(path string) bool {
	switch path {
	case "/health", "/health/ready", "/health/models", "/metrics":
		return true
	default:
		return false
	}
}
