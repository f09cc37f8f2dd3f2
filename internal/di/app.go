package di

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/settings"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/telemetry"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/usage"
)

// App bundles the running components.
type App struct {
	Server          *http.Server
	Logger          *slog.Logger
	Config          *config.Config
	Telemetry       *telemetry.Provider
	SettingsStore   *settings.Store
	UsageRepository *usage.Repository
	UsageRecorder   *usage.Recorder
}

// Close releases resources in reverse construction order.
func (a *App) Close(ctx context.Context) {
	if a.UsageRecorder != nil {
		a.UsageRecorder.Close()
	}
	if a.UsageRepository != nil {
		a.UsageRepository.Close()
	}
	if a.SettingsStore != nil {
		a.SettingsStore.Close()
	}
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil && a.Logger != nil {
			a.Logger.Warn("telemetry_shutdown_failed", "err", err)
		}
	}
}
