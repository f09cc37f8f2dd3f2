package config

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Task names used to pick per-operation model and thinking settings.
const (
	TaskCaption = "caption"
	TaskReply   = "reply"
)

// ThinkingConfig: Gemini thinking level per task.
type ThinkingConfig struct {
	LevelDefault string
	LevelCaption string
	LevelReply   string
}

// Level returns the thinking level for task.
func (t ThinkingConfig) Level(task string) string {
	switch task {
	case TaskCaption:
		if t.LevelCaption != "" {
			return t.LevelCaption
		}
	case TaskReply:
		if t.LevelReply != "" {
			return t.LevelReply
		}
	}
	return t.LevelDefault
}

// GeminiConfig: Gemini model settings.
type GeminiConfig struct {
	APIKeys         []string
	DefaultModel    string
	CaptionModel    string
	ReplyModel      string
	MaxOutputTokens int
	Thinking        ThinkingConfig
	TimeoutSeconds  int
}

// PrimaryKey returns the first configured API key.
func (g GeminiConfig) PrimaryKey() string {
	if len(g.APIKeys) == 0 {
		return ""
	}
	return g.APIKeys[0]
}

// ModelForTask returns the per-task override or the default model.
func (g GeminiConfig) ModelForTask(task string) string {
	switch task {
	case TaskCaption:
		if g.CaptionModel != "" {
			return g.CaptionModel
		}
	case TaskReply:
		if g.ReplyModel != "" {
			return g.ReplyModel
		}
	}
	return g.DefaultModel
}

// CaptionConfig: caption generation settings.
type CaptionConfig struct {
	Language string
}

// ReplyConfig: auto-reply settings.
type ReplyConfig struct {
	Temperature   float64
	FallbackEmpty string
	FallbackBusy  string
}

// SettingsStoreConfig: bot settings store connection.
type SettingsStoreConfig struct {
	URL                 string
	Key                 string
	Enabled             bool
	Required            bool
	DisableCache        bool
	ConnectMaxAttempts  int
	ConnectRetrySeconds int
}

// GuardConfig: input screening settings.
type GuardConfig struct {
	Enabled         bool
	Threshold       float64
	RulepacksDir    string
	CacheMaxSize    int
	CacheTTLSeconds int
}

// LoggingConfig: logger settings.
type LoggingConfig struct {
	Level      string
	LogDir     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// HTTPConfig: HTTP server settings.
type HTTPConfig struct {
	Host         string
	Port         int
	HTTP2Enabled bool
	CORSOrigins  []string
}

// HTTPAuthConfig: API key auth settings.
type HTTPAuthConfig struct {
	APIKey   string
	Required bool
}

// HTTPRateLimitConfig: per-identity request limit.
type HTTPRateLimitConfig struct {
	RequestsPerMinute int
	CacheSize         int
	CacheTTLSeconds   int
}

// DatabaseConfig: usage accounting database.
type DatabaseConfig struct {
	Enabled                              bool
	Host                                 string
	Port                                 int
	Name                                 string
	User                                 string
	Password                             string
	MinPool                              int
	MaxPool                              int
	ConnMaxLifetimeMinutes               int
	ConnMaxIdleTimeMinutes               int
	UsageBatchEnabled                    bool
	UsageBatchFlushIntervalSeconds       int
	UsageBatchFlushTimeoutSeconds        int
	UsageBatchMaxPendingRequests         int
	UsageBatchMaxBackoffSeconds          int
	UsageBatchErrorLogMaxIntervalSeconds int
}

// DSN returns the postgres connection string.
func (d DatabaseConfig) DSN() string {
	host := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	u := &url.URL{
		Scheme: "postgresql",
		Host:   host,
		Path:   "/" + d.Name,
	}
	if d.Password == "" {
		u.User = url.User(d.User)
	} else {
		u.User = url.UserPassword(d.User, d.Password)
	}
	return u.String()
}

// TelemetryConfig: OpenTelemetry tracing settings.
type TelemetryConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	OTLPInsecure   bool
	SampleRate     float64
}

// Config is the whole application configuration.
type Config struct {
	Gemini        GeminiConfig
	Caption       CaptionConfig
	Reply         ReplyConfig
	SettingsStore SettingsStoreConfig
	Guard         GuardConfig
	Logging       LoggingConfig
	HTTP          HTTPConfig
	HTTPAuth      HTTPAuthConfig
	HTTPRateLimit HTTPRateLimitConfig
	Database      DatabaseConfig
	Telemetry     TelemetryConfig
}

func isGeminiModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gemini-")
}
