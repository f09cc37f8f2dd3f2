package telemetry

import (
	"context"
	"testing"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
)

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.IsEnabled() {
		t.Fatalf("expected disabled provider")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg := FromAppConfig(config.TelemetryConfig{Enabled: true, ServiceName: "svc", SampleRate: 0.5})
	if !cfg.Enabled || cfg.ServiceName != "svc" || cfg.SampleRate != 0.5 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestRootSampler(t *testing.T) {
	if got := rootSampler(1).Description(); got != "AlwaysOnSampler" {
		t.Fatalf("unexpected sampler: %s", got)
	}
	if got := rootSampler(0).Description(); got != "AlwaysOffSampler" {
		t.Fatalf("unexpected sampler: %s", got)
	}
}
