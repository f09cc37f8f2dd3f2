package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/middleware"
)

const defaultServiceName = "kinokopir"

// NewRouter builds the HTTP router.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	checker HealthCollector,
	metricsHandler http.Handler,
	captionHandler *CaptionHandler,
	replyHandler *ReplyHandler,
	settingsHandler *SettingsHandler,
	usageHandler *UsageHandler,
	llmHandler *LLMHandler,
	guardHandler *GuardHandler,
) *gin.Engine {
	setGinMode(cfg.Logging.Level)

	router := gin.New()
	if cfg.Telemetry.Enabled {
		serviceName := cfg.Telemetry.ServiceName
		if serviceName == "" {
			serviceName = defaultServiceName
		}
		router.Use(otelgin.Middleware(serviceName))
	}
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(logger),
		gin.Recovery(),
	)
	if len(cfg.HTTP.CORSOrigins) > 0 {
		router.Use(cors.New(newCORSConfig(cfg.HTTP.CORSOrigins)))
	}
	router.Use(
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/health", "/metrics"})),
		middleware.APIKeyAuth(cfg),
		middleware.RateLimit(cfg),
	)

	RegisterHealthRoutes(router, cfg, checker, metricsHandler)
	captionHandler.RegisterRoutes(router)
	replyHandler.RegisterRoutes(router)
	settingsHandler.RegisterRoutes(router)
	usageHandler.RegisterRoutes(router)
	llmHandler.RegisterRoutes(router)
	if guardHandler != nil {
		guardHandler.RegisterRoutes(router)
	}

	return router
}

func newCORSConfig(origins []string) cors.Config {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = origins
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-API-Key", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"}
	return corsConfig
}

func setGinMode(level string) {
	if strings.EqualFold(strings.TrimSpace(level), "debug") {
		gin.SetMode(gin.DebugMode)
		return
	}
	gin.SetMode(gin.ReleaseMode)
}
