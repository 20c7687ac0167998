package erp

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/erp-vau-go/pkg/auth"
	"github.com/ajitpratap0/erp-vau-go/pkg/client"
	"github.com/ajitpratap0/erp-vau-go/pkg/config"
	"github.com/ajitpratap0/erp-vau-go/pkg/fhir"
	"github.com/ajitpratap0/erp-vau-go/pkg/logging"
	"github.com/ajitpratap0/erp-vau-go/pkg/observability"
	"github.com/ajitpratap0/erp-vau-go/pkg/transport"
	"github.com/ajitpratap0/erp-vau-go/pkg/vau"
)

// Version represents the current version of the module
const Version = "1.0.0"

// These exports provide direct access to the core components
var (
	// NewChannel creates a VAU channel
	NewChannel = vau.NewChannel

	// NewTokenProvider creates a bearer token provider
	NewTokenProvider = auth.NewTokenProvider

	// NewClient creates a request orchestrator
	NewClient = client.New

	// NewCommand creates a FHIR command
	NewCommand = client.NewCommand

	// NewTransport creates the retrying HTTP transport
	NewTransport = transport.NewTransport

	// LoadConfig loads a YAML file and ERP_ environment overrides
	LoadConfig = config.Load
)

// Client types
const (
	ClientTypePS  = vau.ClientTypePS
	ClientTypeFdV = vau.ClientTypeFdV
)

// Session is a fully wired client built from a Config
type Session struct {
	Config  config.Config
	Logger  logging.Logger
	Metrics *observability.PrometheusMetricsProvider
	Tracing *observability.TracingProvider
	Channel *vau.Channel
	Tokens  *auth.TokenProvider
	Client  *client.Client
}

type sessionOptions struct {
	logOutput io.Writer
	registry  *prometheus.Registry
	validator fhir.Validator
	cache     *vau.CertificateCache
	crypto    vau.CryptoProvider
	rt        transport.Transport
	exporter  sdktrace.SpanExporter
}

// SessionOption customizes NewSession
type SessionOption func(*sessionOptions)

// WithLogOutput redirects log output, os.Stderr by default
func WithLogOutput(w io.Writer) SessionOption {
	return func(o *sessionOptions) {
		o.logOutput = w
	}
}

// WithMetricsRegistry registers the collectors on registry instead of a
// fresh one
func WithMetricsRegistry(registry *prometheus.Registry) SessionOption {
	return func(o *sessionOptions) {
		o.registry = registry
	}
}

// WithValidator sets the payload validator
func WithValidator(v fhir.Validator) SessionOption {
	return func(o *sessionOptions) {
		o.validator = v
	}
}

// WithCertificateCache replaces vau.DefaultCertificateCache
func WithCertificateCache(cache *vau.CertificateCache) SessionOption {
	return func(o *sessionOptions) {
		o.cache = cache
	}
}

// WithCryptoProvider replaces the ECIES provider
func WithCryptoProvider(p vau.CryptoProvider) SessionOption {
	return func(o *sessionOptions) {
		o.crypto = p
	}
}

// WithTransport replaces the transport built from the configuration
func WithTransport(t transport.Transport) SessionOption {
	return func(o *sessionOptions) {
		o.rt = t
	}
}

// WithSpanExporter exports spans synchronously to exporter instead of the
// configured OTLP exporter. It only applies when tracing is enabled.
func WithSpanExporter(exporter sdktrace.SpanExporter) SessionOption {
	return func(o *sessionOptions) {
		o.exporter = exporter
	}
}

// NewSession validates cfg and wires logging, metrics, tracing, transport,
// channel, token provider and client. authenticator obtains the bearer
// tokens. Nothing is sent until Initialize.
func NewSession(cfg config.Config, authenticator auth.Authenticator, options ...SessionOption) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := sessionOptions{logOutput: os.Stderr}
	for _, option := range options {
		option(&opts)
	}

	logger := newLogger(cfg.Logging, opts.logOutput)
	s := &Session{Config: cfg, Logger: logger}

	var metrics observability.MetricsProvider
	if cfg.Metrics.Enabled {
		registry := opts.registry
		if registry == nil {
			registry = prometheus.NewRegistry()
		}
		provider, err := observability.NewMetricsProvider(observability.MetricsConfig{
			ServiceVersion: Version,
			Namespace:      cfg.Metrics.Namespace,
			Subsystem:      cfg.Metrics.Subsystem,
			MetricsPath:    cfg.Metrics.Path,
			MetricsPort:    cfg.Metrics.Port,
			Registerer:     registry,
			Gatherer:       registry,
		})
		if err != nil {
			return nil, err
		}
		s.Metrics = provider
		metrics = provider
	}

	if cfg.Tracing.Enabled {
		tracing, err := observability.NewTracingProvider(observability.TracingConfig{
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: Version,
			Environment:    cfg.Tracing.Environment,
			ExporterType:   observability.ExporterType(cfg.Tracing.Exporter),
			Endpoint:       cfg.Tracing.Endpoint,
			Headers:        cfg.Tracing.Headers,
			Insecure:       cfg.Tracing.Insecure,
			SampleRate:     cfg.Tracing.SampleRate,
			BatchTimeout:   cfg.Tracing.BatchTimeout,
			Exporter:       opts.exporter,
		})
		if err != nil {
			return nil, err
		}
		s.Tracing = tracing
	}

	// the tracer provider owns an exporter from here on
	fail := func(err error) (*Session, error) {
		if s.Tracing != nil {
			_ = s.Tracing.Shutdown(context.Background())
		}
		return nil, err
	}

	tracer := s.tracer()
	rt := opts.rt
	if rt == nil {
		transportConfig := cfg.Transport
		transportConfig.Logger = logger
		transportConfig.Metrics = metrics
		transportConfig.Tracer = tracer
		var err error
		if rt, err = transport.NewTransport(transportConfig); err != nil {
			return fail(err)
		}
	}

	channelOptions := []vau.Option{
		vau.WithTransport(rt),
		vau.WithLogger(logger),
		vau.WithMetrics(metrics),
		vau.WithTracer(tracer),
	}
	if opts.cache != nil {
		channelOptions = append(channelOptions, vau.WithCertificateCache(opts.cache))
	}
	if opts.crypto != nil {
		channelOptions = append(channelOptions, vau.WithCryptoProvider(opts.crypto))
	}
	channel, err := vau.NewChannel(cfg.VAU, channelOptions...)
	if err != nil {
		return fail(err)
	}
	s.Channel = channel

	s.Tokens = auth.NewTokenProvider(authenticator,
		auth.WithLogger(logger),
		auth.WithMetrics(metrics),
	)

	clientOptions := []client.Option{
		client.WithLogger(logger),
		client.WithMetrics(metrics),
		client.WithTracer(tracer),
	}
	if opts.validator != nil {
		clientOptions = append(clientOptions, client.WithValidator(opts.validator))
	}
	if s.Client, err = client.New(cfg.Client, channel, s.Tokens, clientOptions...); err != nil {
		return fail(err)
	}

	return s, nil
}

// Initialize starts the metrics endpoint if configured, opens the channel and
// authenticates
func (s *Session) Initialize(ctx context.Context) error {
	if s.Metrics != nil && s.Config.Metrics.Port > 0 {
		if err := s.Metrics.Start(ctx); err != nil {
			return err
		}
	}
	return s.Client.Initialize(ctx)
}

// Close stops the metrics endpoint and flushes pending spans
func (s *Session) Close(ctx context.Context) error {
	var errs []error
	if s.Metrics != nil {
		errs = append(errs, s.Metrics.Shutdown(ctx))
	}
	if s.Tracing != nil {
		errs = append(errs, s.Tracing.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (s *Session) tracer() trace.Tracer {
	if s.Tracing != nil {
		return s.Tracing.Tracer()
	}
	return nil
}

// Do runs cmd on the session's client
func Do[R any](ctx context.Context, s *Session, cmd client.Command) (*client.Response[R], error) {
	return client.Do[R](ctx, s.Client, cmd)
}

func newLogger(cfg config.LoggingConfig, output io.Writer) logging.Logger {
	var formatter logging.Formatter = logging.NewTextFormatter()
	if cfg.Format == config.FormatJSON {
		formatter = logging.NewJSONFormatter()
	}
	logger := logging.New(output, formatter)
	if level, err := logging.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	return logger
}
