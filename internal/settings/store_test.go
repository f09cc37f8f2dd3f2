package settings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
)

var fixedNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)
	cfg := &config.Config{
		SettingsStore: config.SettingsStoreConfig{
			URL:                "redis://" + mini.Addr(),
			Key:                "kino:settings",
			Enabled:            true,
			DisableCache:       true,
			ConnectMaxAttempts: 1,
		},
	}
	store, err := NewStore(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	store.now = func() time.Time { return fixedNow }
	t.Cleanup(store.Close)
	return store, mini
}

func TestStoreGetReturnsDefaultsWhenUnset(t *testing.T) {
	store, _ := newTestStore(t)
	if store.Backend() != BackendValkey {
		t.Fatalf("expected valkey backend, got %s", store.Backend())
	}

	got, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TargetChannel != DefaultTargetChannel || !got.UpdatedAt.IsZero() {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestStoreSaveAndGet(t *testing.T) {
	store, mini := newTestStore(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, Settings{
		TargetChannel:  "my_movie_channel",
		SourceChannels: []string{"source_one", "@Source_One", "source_two"},
		AutoCopy:       true,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !saved.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected updated_at: %s", saved.UpdatedAt)
	}
	if !mini.Exists("kino:settings") {
		t.Fatalf("expected settings key in valkey")
	}

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TargetChannel != "@my_movie_channel" {
		t.Fatalf("unexpected target: %s", got.TargetChannel)
	}
	if len(got.SourceChannels) != 2 || got.SourceChannels[1] != "@source_two" {
		t.Fatalf("unexpected sources: %v", got.SourceChannels)
	}
	if !got.AutoCopy || got.AutomationEnabled {
		t.Fatalf("unexpected toggles: %+v", got)
	}
}

func TestStoreSaveRejectsInvalid(t *testing.T) {
	store, mini := newTestStore(t)

	_, err := store.Save(context.Background(), Settings{TargetChannel: "x"})
	if !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
	if mini.Exists("kino:settings") {
		t.Fatalf("invalid settings must not be stored")
	}
}

func TestStoreSetAutomation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Save(ctx, Settings{TargetChannel: "@UZHD_kinolari", AutomationEnabled: true, SkipDuplicates: true}); err != nil {
		t.Fatalf("save: %v", err)
	}

	stopped, err := store.SetAutomation(ctx, false)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.AutomationEnabled || !stopped.SkipDuplicates {
		t.Fatalf("unexpected settings after stop: %+v", stopped)
	}

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AutomationEnabled {
		t.Fatalf("automation should be stopped")
	}
}

func TestStoreUpdate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Save(ctx, Settings{TargetChannel: "@UZHD_kinolari", AutomationEnabled: true, AutoCopy: true}); err != nil {
		t.Fatalf("save: %v", err)
	}

	updated, err := store.Update(ctx, func(current Settings) Settings {
		current.SourceChannels = []string{" kino_uz_hd "}
		return current
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.SourceChannels) != 1 || updated.SourceChannels[0] != "@kino_uz_hd" {
		t.Fatalf("sources not normalized: %+v", updated.SourceChannels)
	}
	if !updated.AutomationEnabled || !updated.AutoCopy || updated.TargetChannel != "@UZHD_kinolari" {
		t.Fatalf("unrelated fields changed: %+v", updated)
	}

	_, err = store.Update(ctx, func(current Settings) Settings {
		current.TargetChannel = "x"
		return current
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TargetChannel != "@UZHD_kinolari" {
		t.Fatalf("invalid update must not be stored: %+v", got)
	}
}

func TestStoreUpdateSerializesWithSetAutomation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	done := make(chan error, 1)
	_, err := store.Update(ctx, func(current Settings) Settings {
		go func() {
			_, err := store.SetAutomation(ctx, false)
			done <- err
		}()
		time.Sleep(20 * time.Millisecond)
		current.WatermarkRemoval = true
		return current
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("set automation: %v", err)
	}

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AutomationEnabled || !got.WatermarkRemoval {
		t.Fatalf("expected both writes to survive, got %+v", got)
	}
}

func TestStoreGetCorruptValue(t *testing.T) {
	store, mini := newTestStore(t)
	if err := mini.Set("kino:settings", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Get(context.Background()); err == nil {
		t.Fatalf("expected unmarshal error")
	}
}

func TestStorePing(t *testing.T) {
	store, mini := newTestStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	mini.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err == nil {
		t.Fatalf("expected ping error after shutdown")
	}
}

func TestNewStoreDisabledRequired(t *testing.T) {
	cfg := &config.Config{SettingsStore: config.SettingsStoreConfig{Enabled: false, Required: true}}
	if _, err := NewStore(context.Background(), cfg, testLogger()); !errors.Is(err, ErrStoreRequired) {
		t.Fatalf("expected ErrStoreRequired, got %v", err)
	}
}

func TestNewStoreFallsBackToMemory(t *testing.T) {
	cfg := &config.Config{SettingsStore: config.SettingsStoreConfig{Enabled: false}}
	store, err := NewStore(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("expected memory store, got error: %v", err)
	}
	if store.Backend() != BackendMemory {
		t.Fatalf("expected memory backend, got %s", store.Backend())
	}
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("memory ping: %v", err)
	}

	saved, err := store.Save(ctx, Settings{TargetChannel: "UZHD_kinolari", SourceChannels: []string{"source_one"}})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	saved.SourceChannels[0] = "@mutated"

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SourceChannels[0] != "@source_one" {
		t.Fatalf("stored settings should not alias caller slices: %v", got.SourceChannels)
	}

	if _, err := store.SetAutomation(ctx, true); err != nil {
		t.Fatalf("set automation: %v", err)
	}
	got, _ = store.Get(ctx)
	if !got.AutomationEnabled || got.TargetChannel != "@UZHD_kinolari" {
		t.Fatalf("unexpected settings: %+v", got)
	}
}

func TestNewStoreUnreachable(t *testing.T) {
	mini := miniredis.RunT(t)
	addr := mini.Addr()
	mini.Close()

	cfg := &config.Config{SettingsStore: config.SettingsStoreConfig{
		URL:                "redis://" + addr,
		Enabled:            true,
		DisableCache:       true,
		ConnectMaxAttempts: 2,
	}}
	store, err := NewStore(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("optional store should fall back, got %v", err)
	}
	if store.Backend() != BackendMemory {
		t.Fatalf("expected memory fallback, got %s", store.Backend())
	}

	cfg.SettingsStore.Required = true
	if _, err := NewStore(context.Background(), cfg, testLogger()); !errors.Is(err, ErrStoreRequired) {
		t.Fatalf("expected ErrStoreRequired, got %v", err)
	}
}

func TestParseStoreURL(t *testing.T) {
	tests := []struct {
		raw     string
		addr    string
		db      int
		tls     bool
		user    string
		wantErr bool
	}{
		{raw: "redis://localhost:6379", addr: "localhost:6379"},
		{raw: "redis://user:pw@cache:6380/2", addr: "cache:6380", db: 2, user: "user"},
		{raw: "rediss://cache.example.com", addr: "cache.example.com:6379", tls: true},
		{raw: "valkey://cache", addr: "cache:6379"},
		{raw: "cache:7000", addr: "cache:7000"},
		{raw: "cache", addr: "cache:6379"},
		{raw: "http://cache", wantErr: true},
		{raw: "redis://cache/abc", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tc := range tests {
		info, err := parseStoreURL(tc.raw)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseStoreURL(%q) err=%v, wantErr=%v", tc.raw, err, tc.wantErr)
			continue
		}
		if tc.wantErr {
			continue
		}
		if info.addr != tc.addr || info.selectDB != tc.db || info.useTLS != tc.tls || info.username != tc.user {
			t.Errorf("parseStoreURL(%q) = %+v", tc.raw, info)
		}
	}
}
