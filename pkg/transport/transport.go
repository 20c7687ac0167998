package transport

import (
	"context"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	erperrors "github.com/ajitpratap0/erp-vau-go/pkg/errors"
	"github.com/ajitpratap0/erp-vau-go/pkg/logging"
	"github.com/ajitpratap0/erp-vau-go/pkg/observability"
)

// Request is one outer HTTP request. The body is held as bytes so that every
// attempt can send it again.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte

	// Operation names the call in logs, metrics and errors, e.g. "send".
	Operation string
}

// Response is a fully read outer HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// MediaType returns the media type of the Content-Type header without
// parameters, lower-cased. It is empty when the header is absent.
func (r *Response) MediaType() string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// Transport performs a single blocking byte exchange.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}

// RoundTripFunc adapts a function to the Transport interface
type RoundTripFunc func(ctx context.Context, req *Request) (*Response, error)

// RoundTrip implements Transport
func (f RoundTripFunc) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Config is the configuration for the default transport stack
type Config struct {
	Features      FeatureConfig       `json:"features" koanf:"features"`
	Connection    ConnectionConfig    `json:"connection" koanf:"connection"`
	Retry         RetryConfig         `json:"retry" koanf:"retry"`
	Observability ObservabilityConfig `json:"observability" koanf:"observability"`

	// Collaborators; nil values fall back to no-op implementations.
	Logger  logging.Logger                `json:"-" koanf:"-"`
	Metrics observability.MetricsProvider `json:"-" koanf:"-"`
	Tracer  trace.Tracer                  `json:"-" koanf:"-"`
}

// FeatureConfig controls which middleware are enabled
type FeatureConfig struct {
	EnableRetry         bool `json:"enable_retry" koanf:"enable_retry"`
	EnableObservability bool `json:"enable_observability" koanf:"enable_observability"`
}

// ConnectionConfig for connection management
type ConnectionConfig struct {
	// ConnectTimeout bounds one dial; it is the per-attempt timeout of the retry loop.
	ConnectTimeout  time.Duration `json:"connect_timeout" koanf:"connect_timeout"`
	RequestTimeout  time.Duration `json:"request_timeout" koanf:"request_timeout"`
	KeepAlive       time.Duration `json:"keep_alive" koanf:"keep_alive"`
	MaxIdleConns    int           `json:"max_idle_conns" koanf:"max_idle_conns"`
	IdleConnTimeout time.Duration `json:"idle_conn_timeout" koanf:"idle_conn_timeout"`
	TLS             TLSConfig     `json:"tls" koanf:"tls"`
}

// TLSConfig configures the outer TLS connection. The payload is end-to-end
// encrypted by the VAU layer, test environments often skip verification.
type TLSConfig struct {
	InsecureSkipVerify bool   `json:"insecure_skip_verify" koanf:"insecure_skip_verify"`
	MinVersion         string `json:"min_version,omitempty" koanf:"min_version"`
	ServerName         string `json:"server_name,omitempty" koanf:"server_name"`
}

// RetryConfig for the retrying transport
type RetryConfig struct {
	// MaxRetries is the number of repeats after the first attempt.
	MaxRetries int `json:"max_retries" koanf:"max_retries"`
	// RetryDelay is a constant pause between attempts; zero retries immediately.
	RetryDelay time.Duration `json:"retry_delay" koanf:"retry_delay"`
}

// MaxAttempts is the attempt ceiling
func (c RetryConfig) MaxAttempts() int {
	return c.MaxRetries + 1
}

// ObservabilityConfig for metrics, logging and tracing of single attempts
type ObservabilityConfig struct {
	EnableMetrics bool `json:"enable_metrics" koanf:"enable_metrics"`
	EnableLogging bool `json:"enable_logging" koanf:"enable_logging"`
	EnableTracing bool `json:"enable_tracing" koanf:"enable_tracing"`
}

// DefaultMaxRetries gives an attempt ceiling of 12.
const DefaultMaxRetries = 11

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Features: FeatureConfig{
			EnableRetry:         true,
			EnableObservability: true,
		},
		Connection: ConnectionConfig{
			ConnectTimeout:  10 * time.Second,
			RequestTimeout:  60 * time.Second,
			KeepAlive:       30 * time.Second,
			MaxIdleConns:    10,
			IdleConnTimeout: 90 * time.Second,
			TLS: TLSConfig{
				MinVersion: "1.2",
			},
		},
		Retry: RetryConfig{
			MaxRetries: DefaultMaxRetries,
		},
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			EnableLogging: true,
			EnableTracing: true,
		},
	}
}

// NewTransport creates the HTTP transport wrapped in the configured middleware
func NewTransport(config Config) (Transport, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	base, err := NewHTTPTransport(config.Connection)
	if err != nil {
		return nil, err
	}

	return ChainMiddleware(buildMiddleware(config)...).Wrap(base), nil
}

// buildMiddleware returns the chain outermost first. Retry wraps observability
// so that each attempt is observed.
func buildMiddleware(config Config) []Middleware {
	logger := logging.OrNop(config.Logger)
	metrics := observability.OrNoop(config.Metrics)

	var middleware []Middleware
	if config.Features.EnableRetry {
		middleware = append(middleware, NewRetryMiddleware(config.Retry, logger, metrics))
	}
	if config.Features.EnableObservability {
		middleware = append(middleware, NewObservabilityMiddleware(config.Observability, logger, metrics, config.Tracer))
	}
	return middleware
}

// Validate rejects negative retry and timeout values and unknown TLS versions
func (c Config) Validate() error {
	return validateConfig(c)
}

func validateConfig(config Config) error {
	if config.Retry.MaxRetries < 0 {
		return erperrors.InvalidParameter("retry.max_retries", config.Retry.MaxRetries, "a non-negative integer")
	}
	if config.Retry.RetryDelay < 0 {
		return erperrors.InvalidParameter("retry.retry_delay", config.Retry.RetryDelay, "a non-negative duration")
	}
	if config.Connection.ConnectTimeout < 0 {
		return erperrors.InvalidParameter("connection.connect_timeout", config.Connection.ConnectTimeout, "a non-negative duration")
	}
	if config.Connection.RequestTimeout < 0 {
		return erperrors.InvalidParameter("connection.request_timeout", config.Connection.RequestTimeout, "a non-negative duration")
	}
	if _, err := tlsVersion(config.Connection.TLS.MinVersion); err != nil {
		return err
	}
	return nil
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	return h.Clone()
}
