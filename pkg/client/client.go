package client

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/erp-vau-go/pkg/auth"
	erperrors "github.com/ajitpratap0/erp-vau-go/pkg/errors"
	"github.com/ajitpratap0/erp-vau-go/pkg/fhir"
	"github.com/ajitpratap0/erp-vau-go/pkg/innerhttp"
	"github.com/ajitpratap0/erp-vau-go/pkg/logging"
	"github.com/ajitpratap0/erp-vau-go/pkg/observability"
	"github.com/ajitpratap0/erp-vau-go/pkg/vau"
)

// Channel is the encrypted tunnel a Client sends through. *vau.Channel
// implements it.
type Channel interface {
	Initialize(ctx context.Context) error
	Send(ctx context.Context, inner *innerhttp.Request, accessToken, resource string) (*vau.Result, error)
}

// TokenSource supplies the bearer token of the session. *auth.TokenProvider
// implements it.
type TokenSource interface {
	Token(ctx context.Context) (auth.BearerToken, error)
}

// Config holds the payload settings of a client
type Config struct {
	AcceptCharset    string         `koanf:"accept_charset" json:"accept_charset"`
	AcceptMime       fhir.MediaType `koanf:"accept_mime" json:"accept_mime"`
	SendMime         fhir.MediaType `koanf:"send_mime" json:"send_mime"`
	ValidateRequest  bool           `koanf:"validate_request" json:"validate_request"`
	ValidateResponse bool           `koanf:"validate_response" json:"validate_response"`
}

// DefaultConfig sends and accepts FHIR JSON in UTF-8 without validation
func DefaultConfig() Config {
	return Config{
		AcceptCharset: fhir.DefaultCharset,
		AcceptMime:    fhir.FhirJSON,
		SendMime:      fhir.FhirJSON,
	}
}

// Validate checks the media types
func (c Config) Validate() error {
	if c.AcceptCharset == "" {
		return erperrors.InvalidConfiguration("client", "accept_charset", "must not be empty")
	}
	if _, err := fhir.ParseMediaType(string(c.AcceptMime)); err != nil {
		return erperrors.InvalidConfiguration("client", "accept_mime", err.Error())
	}
	if _, err := fhir.ParseMediaType(string(c.SendMime)); err != nil {
		return erperrors.InvalidConfiguration("client", "send_mime", err.Error())
	}
	return nil
}

// Client orchestrates FHIR operations: it keeps the token fresh, encodes and
// validates payloads, and sends them through the channel. Use Do to run a
// Command.
type Client struct {
	config    Config
	channel   Channel
	tokens    TokenSource
	codec     fhir.Codec
	validator fhir.Validator
	logger    logging.Logger
	metrics   observability.MetricsProvider
	tracer    trace.Tracer
}

// Option configures a Client
type Option func(*Client)

// WithCodec replaces the default JSON codec
func WithCodec(codec fhir.Codec) Option {
	return func(c *Client) {
		c.codec = codec
	}
}

// WithValidator sets the validator used when ValidateRequest or
// ValidateResponse is enabled
func WithValidator(v fhir.Validator) Option {
	return func(c *Client) {
		c.validator = v
	}
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics sets the metrics provider
func WithMetrics(m observability.MetricsProvider) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracer sets the tracer
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// New creates a client on an existing channel and token source
func New(config Config, channel Channel, tokens TokenSource, options ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, erperrors.MissingParameter("channel")
	}
	if tokens == nil {
		return nil, erperrors.MissingParameter("tokens")
	}

	c := &Client{
		config:  config,
		channel: channel,
		tokens:  tokens,
		codec:   fhir.NewJSONCodec(),
	}
	for _, option := range options {
		option(c)
	}

	if (config.ValidateRequest || config.ValidateResponse) && c.validator == nil {
		return nil, erperrors.InvalidConfiguration("client", "validator", "validation is enabled but no validator is set")
	}

	c.logger = logging.OrNop(c.logger).WithFields(logging.String("component", "Client"))
	c.metrics = observability.OrNoop(c.metrics)
	c.tracer = observability.TracerOrGlobal(c.tracer)
	return c, nil
}

// Config returns the client configuration
func (c *Client) Config() Config {
	return c.config
}

// Initialize opens the channel and authenticates once
func (c *Client) Initialize(ctx context.Context) error {
	c.logger.WithContext(ctx).Info("Initializing client")
	if err := c.channel.Initialize(ctx); err != nil {
		return err
	}
	_, err := c.tokens.Token(ctx)
	return err
}
