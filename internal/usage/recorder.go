package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
)

// Recorder stores per-call token usage, directly or through the batcher.
// A nil Recorder, or one without a store, drops everything.
type Recorder struct {
	repo    Store
	batcher *batcher
	logger  *slog.Logger
}

// NewRecorder creates a Recorder; batching follows cfg.Database.UsageBatchEnabled.
func NewRecorder(cfg *config.Config, repo Store, logger *slog.Logger) *Recorder {
	recorder := &Recorder{
		repo:   repo,
		logger: logger,
	}

	if repo != nil && cfg != nil && cfg.Database.UsageBatchEnabled {
		recorder.batcher = newBatcher(cfg, repo, logger)
		recorder.batcher.start()
		if logger != nil {
			logger.Info(
				"usage_db_batch_enabled",
				"flush_interval_seconds", cfg.Database.UsageBatchFlushIntervalSeconds,
				"flush_timeout_seconds", cfg.Database.UsageBatchFlushTimeoutSeconds,
				"max_pending_requests", cfg.Database.UsageBatchMaxPendingRequests,
				"max_backoff_seconds", cfg.Database.UsageBatchMaxBackoffSeconds,
				"error_log_max_interval_seconds", cfg.Database.UsageBatchErrorLogMaxIntervalSeconds,
			)
		}
	}

	return recorder
}

// Record stores the usage of one request under operation.
func (r *Recorder) Record(ctx context.Context, operation string, inputTokens int64, outputTokens int64, reasoningTokens int64) {
	if r == nil || r.repo == nil {
		return
	}
	if inputTokens <= 0 && outputTokens <= 0 {
		return
	}

	if r.batcher != nil {
		r.batcher.add(operation, inputTokens, outputTokens, reasoningTokens, 1)
		return
	}

	if err := r.repo.RecordUsage(ctx, operation, inputTokens, outputTokens, reasoningTokens, 1, time.Time{}); err != nil {
		if r.logger != nil {
			r.logger.Warn("usage_db_save_failed", "operation", operation, "err", err)
		}
	}
}

// Close stops the batcher and flushes what is pending.
func (r *Recorder) Close() {
	if r == nil || r.batcher == nil {
		return
	}
	r.batcher.stop()
}
