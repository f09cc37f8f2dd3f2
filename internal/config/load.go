package config

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joho/godotenv"
)

var (
	configOnce  sync.Once
	configValue *Config
)

// Load reads the environment (and .env when present) once.
func Load() *Config {
	configOnce.Do(func() {
		_ = godotenv.Load()
		configValue = buildConfig()
	})
	return configValue
}

// ProvideConfig loads and validates the configuration.
func ProvideConfig() (*Config, error) {
	cfg := Load()
	if cfg == nil {
		return nil, errors.New("config not initialized")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks model names and value ranges.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	models := []string{
		c.Gemini.DefaultModel,
		c.Gemini.CaptionModel,
		c.Gemini.ReplyModel,
	}
	for _, model := range models {
		if model == "" {
			continue
		}
		if !isGeminiModel(model) {
			return fmt.Errorf("gemini models only: model=%s", model)
		}
	}
	if c.Reply.Temperature < 0 || c.Reply.Temperature > 2 {
		return fmt.Errorf("reply temperature out of range: %v", c.Reply.Temperature)
	}
	if c.HTTPAuth.Required && c.HTTPAuth.APIKey == "" {
		return errors.New("HTTP_AUTH_REQUIRED is set but HTTP_API_KEY is empty")
	}
	if c.Guard.Threshold < 0 {
		return fmt.Errorf("guard threshold must be non-negative: %v", c.Guard.Threshold)
	}
	return nil
}

// LogEnvStatus logs the effective environment with secrets masked.
func LogEnvStatus(cfg *Config, logger *slog.Logger) {
	if logger == nil || cfg == nil {
		return
	}

	logger.Debug(
		"env_status",
		"env_file", fileExists(".env"),
		"gemini_keys", len(cfg.Gemini.APIKeys),
		"primary_key", maskSecret(cfg.Gemini.PrimaryKey()),
		"model", cfg.Gemini.DefaultModel,
		"caption_model", cfg.Gemini.ModelForTask(TaskCaption),
		"reply_model", cfg.Gemini.ModelForTask(TaskReply),
		"timeout", cfg.Gemini.TimeoutSeconds,
		"caption_language", cfg.Caption.Language,
		"reply_temperature", cfg.Reply.Temperature,
		"settings_store_url", cfg.SettingsStore.URL,
		"db_enabled", cfg.Database.Enabled,
		"db_host", cfg.Database.Host,
		"db_name", cfg.Database.Name,
		"http_api_key", maskSecret(cfg.HTTPAuth.APIKey),
	)

	if len(cfg.Gemini.APIKeys) == 0 {
		logger.Error("env_missing_google_api_key")
	}
}

func buildConfig() *Config {
	return &Config{
		Gemini: GeminiConfig{
			APIKeys:         parseAPIKeys(),
			DefaultModel:    getEnvString("GEMINI_MODEL", "gemini-3-flash-preview"),
			CaptionModel:    getEnvString("GEMINI_CAPTION_MODEL", ""),
			ReplyModel:      getEnvString("GEMINI_REPLY_MODEL", ""),
			MaxOutputTokens: getEnvInt("GEMINI_MAX_TOKENS", 2048),
			Thinking: ThinkingConfig{
				LevelDefault: getEnvString("GEMINI_THINKING_LEVEL", "low"),
				LevelCaption: getEnvString("GEMINI_THINKING_LEVEL_CAPTION", ""),
				LevelReply:   getEnvString("GEMINI_THINKING_LEVEL_REPLY", "minimal"),
			},
			TimeoutSeconds: max(1, getEnvInt("GEMINI_TIMEOUT", 30)),
		},
		Caption: CaptionConfig{
			Language: getEnvString("CAPTION_LANGUAGE", "Uzbek"),
		},
		Reply: ReplyConfig{
			Temperature:   getEnvFloat("REPLY_TEMPERATURE", 0.7),
			FallbackEmpty: getEnvString("REPLY_FALLBACK_EMPTY", DefaultFallbackEmpty),
			FallbackBusy:  getEnvString("REPLY_FALLBACK_BUSY", DefaultFallbackBusy),
		},
		SettingsStore: SettingsStoreConfig{
			URL:                 getEnvString("SETTINGS_STORE_URL", "redis://localhost:6379"),
			Key:                 getEnvString("SETTINGS_STORE_KEY", "kino:settings"),
			Enabled:             getEnvBool("SETTINGS_STORE_ENABLED", true),
			Required:            getEnvBool("SETTINGS_STORE_REQUIRED", false),
			DisableCache:        getEnvBool("SETTINGS_STORE_DISABLE_CACHE", false),
			ConnectMaxAttempts:  max(1, getEnvNonNegativeInt("SETTINGS_STORE_CONNECT_MAX_ATTEMPTS", 3)),
			ConnectRetrySeconds: getEnvNonNegativeInt("SETTINGS_STORE_CONNECT_RETRY_SECONDS", 2),
		},
		Guard: GuardConfig{
			Enabled:         getEnvBool("GUARD_ENABLED", true),
			Threshold:       getEnvFloat("GUARD_THRESHOLD", 0.85),
			RulepacksDir:    getEnvString("GUARD_RULEPACKS_DIR", ""),
			CacheMaxSize:    getEnvInt("GUARD_CACHE_SIZE", 10000),
			CacheTTLSeconds: getEnvInt("GUARD_CACHE_TTL", 3600),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			LogDir:     getEnvString("LOG_DIR", ""),
			MaxSizeMB:  getEnvInt("LOG_FILE_MAX_SIZE_MB", 10),
			MaxBackups: getEnvInt("LOG_FILE_MAX_BACKUPS", 10),
			MaxAgeDays: getEnvInt("LOG_FILE_MAX_AGE_DAYS", 7),
			Compress:   getEnvBool("LOG_FILE_COMPRESS", true),
		},
		HTTP: HTTPConfig{
			Host:         getEnvString("HTTP_HOST", "127.0.0.1"),
			Port:         getEnvInt("HTTP_PORT", 8080),
			HTTP2Enabled: getEnvBool("HTTP2_ENABLED", true),
			CORSOrigins:  getEnvList("HTTP_CORS_ORIGINS"),
		},
		HTTPAuth: HTTPAuthConfig{
			APIKey:   getEnvString("HTTP_API_KEY", ""),
			Required: getEnvBool("HTTP_AUTH_REQUIRED", false),
		},
		HTTPRateLimit: HTTPRateLimitConfig{
			RequestsPerMinute: getEnvNonNegativeInt("HTTP_RATE_LIMIT_RPM", 0),
			CacheSize:         max(1, getEnvNonNegativeInt("HTTP_RATE_LIMIT_CACHE_SIZE", 10000)),
			CacheTTLSeconds:   max(1, getEnvNonNegativeInt("HTTP_RATE_LIMIT_CACHE_TTL_SECONDS", 120)),
		},
		Database: DatabaseConfig{
			Enabled:                              getEnvBool("DB_ENABLED", false),
			Host:                                 getEnvString("DB_HOST", "localhost"),
			Port:                                 getEnvInt("DB_PORT", 5432),
			Name:                                 getEnvString("DB_NAME", "kinokopir"),
			User:                                 getEnvString("DB_USER", "kinokopir"),
			Password:                             getEnvString("DB_PASSWORD", ""),
			MinPool:                              getEnvInt("DB_MIN_POOL", 1),
			MaxPool:                              getEnvInt("DB_MAX_POOL", 5),
			ConnMaxLifetimeMinutes:               getEnvNonNegativeInt("DB_CONN_MAX_LIFETIME_MINUTES", 60),
			ConnMaxIdleTimeMinutes:               getEnvNonNegativeInt("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
			UsageBatchEnabled:                    getEnvBool("DB_USAGE_BATCH_ENABLED", false),
			UsageBatchFlushIntervalSeconds:       max(1, getEnvNonNegativeInt("DB_USAGE_BATCH_FLUSH_INTERVAL_SECONDS", 1)),
			UsageBatchFlushTimeoutSeconds:        max(1, getEnvNonNegativeInt("DB_USAGE_BATCH_FLUSH_TIMEOUT_SECONDS", 5)),
			UsageBatchMaxPendingRequests:         max(1, getEnvNonNegativeInt("DB_USAGE_BATCH_MAX_PENDING_REQUESTS", 50)),
			UsageBatchMaxBackoffSeconds:          getEnvNonNegativeInt("DB_USAGE_BATCH_MAX_BACKOFF_SECONDS", 60),
			UsageBatchErrorLogMaxIntervalSeconds: getEnvNonNegativeInt("DB_USAGE_BATCH_ERROR_LOG_MAX_INTERVAL_SECONDS", 60),
		},
		Telemetry: readTelemetryConfig(),
	}
}
