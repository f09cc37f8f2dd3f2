// Package telemetry sets up OpenTelemetry tracing.
package telemetry

import "github.com/nocodeuchun-ctrl/Avto-bot/internal/config"

// Config: tracing settings.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	// OTLPEndpoint is a gRPC collector address, e.g. "jaeger:4317".
	OTLPEndpoint string
	// OTLPInsecure disables TLS to the collector.
	OTLPInsecure bool
	// SampleRate in [0, 1]; 1 traces everything.
	SampleRate float64
}

// FromAppConfig maps the env configuration section.
func FromAppConfig(cfg config.TelemetryConfig) Config {
	return Config{
		Enabled:        cfg.Enabled,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		OTLPInsecure:   cfg.OTLPInsecure,
		SampleRate:     cfg.SampleRate,
	}
}
