// Package health assembles liveness and readiness payloads.
package health

import (
	"context"
	"errors"
	"time"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/usage"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

const deepCheckTimeout = 2 * time.Second

// SettingsProbe is the settings store surface health needs.
type SettingsProbe interface {
	Ping(ctx context.Context) error
	Backend() string
}

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Component is one dependency's state.
type Component struct {
	Status string         `json:"status"`
	Detail map[string]any `json:"detail"`
}

// Response is the /health and /health/ready body.
type Response struct {
	Status     string               `json:"status"`
	Components map[string]Component `json:"components"`
}

// Checker collects component states. Dependencies may be nil.
type Checker struct {
	cfg       *config.Config
	settings  SettingsProbe
	usageDB   Pinger
	startedAt time.Time
}

// NewChecker wires a Checker.
func NewChecker(cfg *config.Config, settings SettingsProbe, usageDB Pinger) *Checker {
	return &Checker{
		cfg:       cfg,
		settings:  settings,
		usageDB:   usageDB,
		startedAt: time.Now(),
	}
}

// Collect reports component health. Shallow checks never touch the network;
// deep checks ping valkey and the usage database.
func (h *Checker) Collect(ctx context.Context, deepChecks bool) Response {
	if ctx == nil {
		ctx = context.Background()
	}

	components := map[string]Component{
		"app":    h.appStatus(),
		"gemini": h.geminiStatus(),
	}
	if deepChecks {
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deepCheckTimeout)
		defer cancel()
		components["settings_store"] = h.settingsStatus(checkCtx)
		components["usage_db"] = h.usageStatus(checkCtx)
	}

	overall := StatusOK
	for _, component := range components {
		if component.Status != StatusOK {
			overall = StatusDegraded
			break
		}
	}
	return Response{Status: overall, Components: components}
}

func (h *Checker) appStatus() Component {
	return Component{
		Status: StatusOK,
		Detail: map[string]any{"uptime_seconds": int(time.Since(h.startedAt).Seconds())},
	}
}

func (h *Checker) geminiStatus() Component {
	detail := map[string]any{"api_key_present": false}
	if h.cfg == nil {
		return Component{Status: StatusDegraded, Detail: detail}
	}

	keyPresent := h.cfg.Gemini.PrimaryKey() != ""
	detail["api_key_present"] = keyPresent
	detail["api_keys"] = len(h.cfg.Gemini.APIKeys)
	detail["default_model"] = h.cfg.Gemini.DefaultModel
	detail["timeout_seconds"] = h.cfg.Gemini.TimeoutSeconds

	status := StatusOK
	if !keyPresent {
		status = StatusDegraded
	}
	return Component{Status: status, Detail: detail}
}

func (h *Checker) settingsStatus(ctx context.Context) Component {
	if h.settings == nil {
		return Component{Status: StatusDegraded, Detail: map[string]any{"error": "not configured"}}
	}

	detail := map[string]any{"backend": h.settings.Backend()}
	status := StatusOK
	if err := h.settings.Ping(ctx); err != nil {
		status = StatusDegraded
		detail["error"] = err.Error()
	}
	// configured for valkey but running on the memory fallback
	if h.cfg != nil && h.cfg.SettingsStore.Enabled && h.settings.Backend() != "valkey" {
		status = StatusDegraded
		detail["fallback"] = true
	}
	return Component{Status: status, Detail: detail}
}

func (h *Checker) usageStatus(ctx context.Context) Component {
	if h.usageDB == nil {
		return Component{Status: StatusOK, Detail: map[string]any{"enabled": false}}
	}

	err := h.usageDB.Ping(ctx)
	switch {
	case err == nil:
		return Component{Status: StatusOK, Detail: map[string]any{"enabled": true, "connected": true}}
	case errors.Is(err, usage.ErrDisabled):
		return Component{Status: StatusOK, Detail: map[string]any{"enabled": false}}
	default:
		return Component{Status: StatusDegraded, Detail: map[string]any{"enabled": true, "connected": false, "error": err.Error()}}
	}
}
