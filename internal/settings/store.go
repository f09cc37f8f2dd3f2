package settings

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/valkey-io/valkey-go"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
)

// ErrStoreRequired is returned when the valkey store is required but unusable.
var ErrStoreRequired = errors.New("settings store required")

// BackendValkey and BackendMemory name where settings live.
const (
	BackendValkey = "valkey"
	BackendMemory = "memory"
)

// client-side cache lifetime for the settings blob
const cacheTTL = 30 * time.Second

// Store persists Settings under a single key. Writers are serialized in-process.
type Store struct {
	client  valkey.Client
	key     string
	backend string
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	memory *Settings
}

// NewStore connects to valkey, retrying per SETTINGS_STORE_CONNECT_*. When the
// store is disabled or unreachable and not required it falls back to memory.
func NewStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	storeCfg := cfg.SettingsStore
	key := storeCfg.Key
	if key == "" {
		key = "kino:settings"
	}

	if !storeCfg.Enabled {
		if storeCfg.Required {
			return nil, fmt.Errorf("%w: SETTINGS_STORE_ENABLED=false", ErrStoreRequired)
		}
		logger.Info("settings_store_memory", "reason", "disabled")
		return newMemoryStore(key, logger), nil
	}

	client, err := connect(ctx, storeCfg, logger)
	if err != nil {
		if storeCfg.Required {
			return nil, fmt.Errorf("%w: %w", ErrStoreRequired, err)
		}
		logger.Warn("settings_store_memory", "reason", "unreachable", "err", err)
		return newMemoryStore(key, logger), nil
	}

	logger.Info("settings_store_ready", "backend", BackendValkey, "key", key)
	return &Store{
		client:  client,
		key:     key,
		backend: BackendValkey,
		logger:  logger,
		now:     time.Now,
	}, nil
}

func newMemoryStore(key string, logger *slog.Logger) *Store {
	return &Store{
		key:     key,
		backend: BackendMemory,
		logger:  logger,
		now:     time.Now,
	}
}

func connect(ctx context.Context, cfg config.SettingsStoreConfig, logger *slog.Logger) (valkey.Client, error) {
	conn, err := parseStoreURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse settings store url: %w", err)
	}

	var tlsConfig *tls.Config
	if conn.useTLS {
		host, _, splitErr := net.SplitHostPort(conn.addr)
		if splitErr != nil {
			return nil, fmt.Errorf("parse settings store addr: %w", splitErr)
		}
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}

	option := valkey.ClientOption{
		TLSConfig:    tlsConfig,
		Username:     conn.username,
		Password:     conn.password,
		InitAddress:  []string{conn.addr},
		SelectDB:     conn.selectDB,
		DisableCache: cfg.DisableCache,
	}

	attempts := max(cfg.ConnectMaxAttempts, 1)
	wait := time.Duration(cfg.ConnectRetrySeconds) * time.Second
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		client, err := valkey.NewClient(option)
		if err == nil {
			return client, nil
		}
		lastErr = err
		logger.Warn("settings_store_connect_failed", "attempt", attempt, "max_attempts", attempts, "err", err)
		if attempt == attempts || wait <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to valkey: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("connect to valkey: %w", lastErr)
}

// Backend reports BackendValkey or BackendMemory.
func (s *Store) Backend() string {
	return s.backend
}

// Close releases the valkey connection.
func (s *Store) Close() {
	if s == nil {
		return
	}
	if s.client != nil {
		s.client.Close()
	}
}

// Ping checks the valkey connection. The memory backend is always healthy.
func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping valkey: %w", err)
	}
	return nil
}

// Get returns the stored settings, or Defaults when nothing has been saved.
func (s *Store) Get(ctx context.Context) (Settings, error) {
	if s.client == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.getMemory(), nil
	}
	return s.getValkey(ctx)
}

// Save validates, normalizes and stores settings, returning what was stored.
func (s *Store) Save(ctx context.Context, value Settings) (Settings, error) {
	normalized, err := value.Normalize()
	if err != nil {
		return Settings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(ctx, normalized)
}

// Update applies fn to the current settings and stores the normalized result.
// The read and the write happen under one lock, so concurrent updates and
// automation toggles never overwrite each other.
func (s *Store) Update(ctx context.Context, fn func(Settings) Settings) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx)
	if err != nil {
		return Settings{}, err
	}
	normalized, err := fn(current).Normalize()
	if err != nil {
		return Settings{}, err
	}
	return s.put(ctx, normalized)
}

// SetAutomation flips AutomationEnabled and keeps every other field.
func (s *Store) SetAutomation(ctx context.Context, enabled bool) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx)
	if err != nil {
		return Settings{}, err
	}
	current.AutomationEnabled = enabled
	return s.put(ctx, current)
}

// load reads the settings for a write; callers hold s.mu.
func (s *Store) load(ctx context.Context) (Settings, error) {
	if s.client == nil {
		return s.getMemory(), nil
	}
	raw, err := s.client.Do(ctx, s.client.B().Get().Key(s.key).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return Defaults(), nil
		}
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return decodeSettings(raw)
}

func (s *Store) put(ctx context.Context, value Settings) (Settings, error) {
	value.UpdatedAt = s.now().UTC()
	if value.SourceChannels == nil {
		value.SourceChannels = []string{}
	}

	if s.client == nil {
		stored := cloneSettings(value)
		s.memory = &stored
		return value, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return Settings{}, fmt.Errorf("marshal settings: %w", err)
	}
	cmd := s.client.B().Set().Key(s.key).Value(string(data)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return value, nil
}

func (s *Store) getValkey(ctx context.Context) (Settings, error) {
	cmd := s.client.B().Get().Key(s.key).Cache()
	raw, err := s.client.DoCache(ctx, cmd, cacheTTL).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return Defaults(), nil
		}
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}

	return decodeSettings(raw)
}

func decodeSettings(raw string) (Settings, error) {
	var value Settings
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	if value.SourceChannels == nil {
		value.SourceChannels = []string{}
	}
	return value, nil
}

func (s *Store) getMemory() Settings {
	if s.memory == nil {
		return Defaults()
	}
	return cloneSettings(*s.memory)
}

func cloneSettings(value Settings) Settings {
	value.SourceChannels = append([]string{}, value.SourceChannels...)
	return value
}
