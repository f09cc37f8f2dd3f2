package di

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/logging"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/telemetry"
)

// ProvideLogger builds the logger. With tracing on, records carry trace_id/span_id.
func ProvideLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.NewLoggerWithOTel(cfg.Logging, cfg.Telemetry.Enabled)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// ProvideTelemetry installs the tracer provider. An exporter failure disables
// tracing instead of aborting startup.
func ProvideTelemetry(ctx context.Context, cfg *config.Config, logger *slog.Logger) *telemetry.Provider {
	provider, err := telemetry.NewProvider(ctx, telemetry.FromAppConfig(cfg.Telemetry))
	if err != nil {
		logger.Warn("telemetry_disabled", "err", err)
		return &telemetry.Provider{}
	}
	if provider.IsEnabled() {
		logger.Info("telemetry_enabled",
			"service", cfg.Telemetry.ServiceName,
			"endpoint", cfg.Telemetry.OTLPEndpoint,
			"sample_rate", cfg.Telemetry.SampleRate,
		)
	}
	return provider
}
