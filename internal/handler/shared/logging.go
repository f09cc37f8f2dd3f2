package shared

import (
	"log/slog"
)

// LogError logs a failed request at warn level as "<domain>_request_failed".
func LogError(logger *slog.Logger, domain string, err error) {
	if logger == nil || err == nil {
		return
	}
	logger.Warn(domain+"_request_failed", "err", err)
}
