// Package config loads the settings of an ERP client session.
//
// Values come from three layers, later ones overriding earlier ones:
//
//  1. Default()
//  2. a YAML file
//  3. environment variables with the ERP_ prefix
//
// Environment variables separate nesting levels with a double underscore, so
// that keys may contain single underscores:
//
//	ERP_VAU__BASE_URL=https://erp-ref.example      -> vau.base_url
//	ERP_TRANSPORT__RETRY__MAX_RETRIES=3            -> transport.retry.max_retries
package config

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/erp-vau-go/pkg/client"
	erperrors "github.com/ajitpratap0/erp-vau-go/pkg/errors"
	"github.com/ajitpratap0/erp-vau-go/pkg/logging"
	"github.com/ajitpratap0/erp-vau-go/pkg/observability"
	"github.com/ajitpratap0/erp-vau-go/pkg/transport"
	"github.com/ajitpratap0/erp-vau-go/pkg/vau"
)

// Config is the complete configuration of a session
type Config struct {
	VAU       vau.Config       `koanf:"vau" json:"vau"`
	Transport transport.Config `koanf:"transport" json:"transport"`
	Client    client.Config    `koanf:"client" json:"client"`
	Logging   LoggingConfig    `koanf:"logging" json:"logging"`
	Metrics   MetricsConfig    `koanf:"metrics" json:"metrics"`
	Tracing   TracingConfig    `koanf:"tracing" json:"tracing"`
}

// LoggingConfig selects level and output format
type LoggingConfig struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"` // text or json
}

// Log formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// MetricsConfig controls the Prometheus collectors
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled" json:"enabled"`
	Namespace string `koanf:"namespace" json:"namespace"`
	Subsystem string `koanf:"subsystem" json:"subsystem"`
	// Port > 0 serves Path over HTTP
	Port int    `koanf:"port" json:"port"`
	Path string `koanf:"path" json:"path"`
}

// TracingConfig controls the OpenTelemetry exporter
type TracingConfig struct {
	Enabled      bool              `koanf:"enabled" json:"enabled"`
	ServiceName  string            `koanf:"service_name" json:"service_name"`
	Environment  string            `koanf:"environment" json:"environment"`
	Exporter     string            `koanf:"exporter" json:"exporter"` // otlp-grpc, otlp-http or noop
	Endpoint     string            `koanf:"endpoint" json:"endpoint"`
	Insecure     bool              `koanf:"insecure" json:"insecure"`
	Headers      map[string]string `koanf:"headers" json:"headers,omitempty"`
	SampleRate   float64           `koanf:"sample_rate" json:"sample_rate"`
	BatchTimeout time.Duration     `koanf:"batch_timeout" json:"batch_timeout"`
}

// Default returns a configuration that only lacks vau.base_url
func Default() Config {
	return Config{
		VAU: vau.Config{
			ClientType: vau.ClientTypePS,
		},
		Transport: transport.DefaultConfig(),
		Client:    client.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: FormatText,
		},
		Metrics: MetricsConfig{
			Namespace: "erp",
			Subsystem: "vau",
			Path:      "/metrics",
		},
		Tracing: TracingConfig{
			ServiceName:  "erp-vau-client",
			Exporter:     string(observability.ExporterTypeOTLPGRPC),
			Endpoint:     "localhost:4317",
			SampleRate:   1.0,
			BatchTimeout: 5 * time.Second,
		},
	}
}

// Validate checks every section
func (c Config) Validate() error {
	if err := c.VAU.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := c.Client.Validate(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return erperrors.InvalidConfiguration("logging", "level", err.Error())
	}
	switch c.Logging.Format {
	case "", FormatText, FormatJSON:
	default:
		return erperrors.InvalidConfiguration("logging", "format", fmt.Sprintf("unknown format %q", c.Logging.Format))
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return erperrors.InvalidConfiguration("metrics", "port", "must be between 0 and 65535")
	}
	if c.Tracing.Enabled {
		switch observability.ExporterType(c.Tracing.Exporter) {
		case observability.ExporterTypeOTLPGRPC, observability.ExporterTypeOTLPHTTP, observability.ExporterTypeNoop:
		default:
			return erperrors.InvalidConfiguration("tracing", "exporter", fmt.Sprintf("unknown exporter %q", c.Tracing.Exporter))
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return erperrors.InvalidConfiguration("tracing", "sample_rate", "must be between 0 and 1")
		}
	}
	return nil
}
