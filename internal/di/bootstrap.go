// Package di wires the application by constructor injection.
package di

import (
	"context"
	"fmt"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/caption"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/domain/kino"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/gemini"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/guard"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/handler"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/health"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/metrics"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/reply"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/server"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/settings"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/usage"
)

// InitializeApp loads configuration and builds every component.
func InitializeApp(ctx context.Context) (*App, error) {
	cfg, err := config.ProvideConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Build(ctx, cfg)
}

// Build wires the application from an already validated cfg.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	app := &App{Logger: logger, Config: cfg}

	app.Telemetry = ProvideTelemetry(ctx, cfg, logger)
	metricsStore := metrics.NewStore()

	app.UsageRepository = usage.NewRepository(cfg, logger)
	app.UsageRecorder = usage.NewRecorder(cfg, app.UsageRepository, logger)

	geminiClient, err := gemini.NewClient(cfg, metricsStore, app.UsageRecorder)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	prompts, err := kino.NewPrompts()
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("kino prompts: %w", err)
	}

	injectionGuard, err := guard.NewGuard(cfg, logger)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("guard: %w", err)
	}

	app.SettingsStore, err = settings.NewStore(ctx, cfg, logger)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("settings store: %w", err)
	}

	captionGenerator := caption.NewGenerator(geminiClient, prompts, cfg.Caption, logger,
		caption.WithOutcomeRecorder(metricsStore))
	responder := reply.NewResponder(geminiClient, prompts, cfg.Reply, logger,
		reply.WithOutcomeRecorder(metricsStore))

	checker := health.NewChecker(cfg, app.SettingsStore, app.UsageRepository)

	router := handler.NewRouter(
		cfg,
		logger,
		checker,
		metricsStore.Handler(),
		handler.NewCaptionHandler(captionGenerator, injectionGuard, logger),
		handler.NewReplyHandler(responder, injectionGuard, metricsStore, logger),
		handler.NewSettingsHandler(app.SettingsStore, logger),
		handler.NewUsageHandler(cfg, app.UsageRepository, logger),
		handler.NewLLMHandler(cfg, metricsStore),
		handler.NewGuardHandler(injectionGuard),
	)
	app.Server = server.NewHTTPServer(cfg, router)

	return app, nil
}
