package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/di"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := di.InitializeApp(ctx)
	if err != nil {
		log.Fatalf("failed to initialize app: %v", err)
	}

	config.LogEnvStatus(app.Config, app.Logger)
	app.Logger.Info(
		"http_server_start",
		"host", app.Config.HTTP.Host,
		"port", app.Config.HTTP.Port,
		"http2", app.Config.HTTP.HTTP2Enabled,
	)

	err = server.Run(ctx, app.Server, app.Logger, server.DefaultShutdownTimeout)

	closeCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	app.Close(closeCtx)
	cancel()

	if err != nil {
		app.Logger.Error("http_server_failed", "err", err)
		os.Exit(1)
	}
	app.Logger.Info("http_server_stopped")
}
