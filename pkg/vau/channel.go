package vau

import (
	"context"
	"crypto/x509"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	erperrors "github.com/ajitpratap0/erp-vau-go/pkg/errors"
	"github.com/ajitpratap0/erp-vau-go/pkg/innerhttp"
	"github.com/ajitpratap0/erp-vau-go/pkg/logging"
	"github.com/ajitpratap0/erp-vau-go/pkg/observability"
	"github.com/ajitpratap0/erp-vau-go/pkg/transport"
)

// Send outcomes reported to metrics
const (
	OutcomeEncrypted    = "encrypted"
	OutcomePlaintext    = "plaintext"
	OutcomeGatewayError = "gateway_error"
	OutcomeError        = "error"
)

// Result is the answer to one Send
type Result struct {
	// Response is the decoded inner response, or the outer response for
	// plaintext answers.
	Response *innerhttp.Response
	// Encrypted is false for plaintext passthrough answers
	Encrypted bool
	// Pseudonym is the session token to use for the next request
	Pseudonym UserPseudonym
	// RequestID is the X-Request-Id of the outer response
	RequestID string
	// VauRequestID identifies the request inside the tunnel
	VauRequestID string
}

// Channel is one VAU session. It is safe for concurrent use, although
// requests of one session are normally sent one after the other so that each
// carries the pseudonym of the previous answer.
type Channel struct {
	config    Config
	transport transport.Transport
	cache     *CertificateCache
	crypto    CryptoProvider
	logger    logging.Logger
	metrics   observability.MetricsProvider
	tracer    trace.Tracer

	mu        sync.Mutex
	state     State
	cert      *x509.Certificate
	protocol  Protocol
	pseudonym UserPseudonym
}

// Option configures a Channel
type Option func(*Channel)

// WithTransport sets the transport used for both tunnel endpoints. It should
// retry transient connect failures; see transport.NewTransport.
func WithTransport(t transport.Transport) Option {
	return func(c *Channel) {
		c.transport = t
	}
}

// WithCertificateCache replaces DefaultCertificateCache
func WithCertificateCache(cache *CertificateCache) Option {
	return func(c *Channel) {
		c.cache = cache
	}
}

// WithCryptoProvider replaces the ECIESProvider
func WithCryptoProvider(p CryptoProvider) Option {
	return func(c *Channel) {
		c.crypto = p
	}
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(c *Channel) {
		c.logger = l
	}
}

// WithMetrics sets the metrics provider
func WithMetrics(m observability.MetricsProvider) Option {
	return func(c *Channel) {
		c.metrics = m
	}
}

// WithTracer sets the tracer
func WithTracer(t trace.Tracer) Option {
	return func(c *Channel) {
		c.tracer = t
	}
}

// NewChannel creates an uninitialized channel. Without WithTransport the
// channel sends through transport.NewTransport(transport.DefaultConfig()).
func NewChannel(config Config, options ...Option) (*Channel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Channel{
		config:    config,
		cache:     DefaultCertificateCache,
		crypto:    ECIESProvider{},
		pseudonym: InitialPseudonym,
	}
	for _, option := range options {
		option(c)
	}

	c.logger = logging.OrNop(c.logger).WithFields(logging.String("component", "Channel"))
	c.metrics = observability.OrNoop(c.metrics)
	c.tracer = observability.TracerOrGlobal(c.tracer)

	if c.transport == nil {
		tc := transport.DefaultConfig()
		tc.Logger = c.logger
		tc.Metrics = c.metrics
		tc.Tracer = c.tracer
		t, err := transport.NewTransport(tc)
		if err != nil {
			return nil, err
		}
		c.transport = t
	}

	return c, nil
}

// State returns the lifecycle state
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pseudonym returns the pseudonym the next request is sent with
func (c *Channel) Pseudonym() UserPseudonym {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pseudonym
}

// Certificate returns the tunnel certificate once fetched
func (c *Channel) Certificate() *x509.Certificate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cert
}

// Initialize obtains the tunnel certificate and derives the crypto context.
// Calling it again on a ready channel is a no-op.
func (c *Channel) Initialize(ctx context.Context) (err error) {
	if c.State() == StateReady {
		return nil
	}

	ctx, span := observability.StartSpan(ctx, c.tracer, "vau.initialize", trace.SpanKindClient,
		attribute.String("vau.base_url", c.config.BaseURL))
	defer func() { observability.EndSpan(span, err) }()

	endpoint := c.config.CertificateURL()
	cert, err := c.cache.Get(ctx, endpoint, c.fetchCertificate)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.cert = cert
	c.state = StateCertificateFetched
	c.mu.Unlock()

	protocol, err := c.crypto.NewProtocol(cert)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Error("Tunnel crypto is not available",
			logging.String("subject", cert.Subject.String()))
		return err
	}

	c.mu.Lock()
	c.protocol = protocol
	c.state = StateReady
	c.mu.Unlock()

	c.logger.WithContext(ctx).Info("Channel ready",
		logging.String("base_url", c.config.BaseURL),
		logging.String("client_type", string(c.config.ClientType)),
		logging.String("certificate_subject", cert.Subject.String()),
	)
	return nil
}

func (c *Channel) fetchCertificate(ctx context.Context) (*x509.Certificate, error) {
	endpoint := c.config.CertificateURL()
	logger := c.logger.WithContext(ctx).WithFields(logging.String("endpoint", endpoint))

	header := http.Header{}
	c.setIdentityHeaders(header)

	logger.Info("Requesting VAU certificate")
	start := time.Now()
	resp, err := c.transport.RoundTrip(ctx, &transport.Request{
		Method:    http.MethodGet,
		URL:       endpoint,
		Header:    header,
		Operation: "fetch_certificate",
	})
	if err != nil {
		c.metrics.RecordCertificateFetch(ctx, observability.StatusError, time.Since(start))
		return nil, err
	}

	if !resp.IsSuccess() {
		c.metrics.RecordCertificateFetch(ctx, observability.StatusError, time.Since(start))
		return nil, erperrors.CertificateError(endpoint, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	cert, err := x509.ParseCertificate(resp.Body)
	if err != nil {
		c.metrics.RecordCertificateFetch(ctx, observability.StatusError, time.Since(start))
		return nil, erperrors.CertificateError(endpoint, err)
	}

	c.metrics.RecordCertificateFetch(ctx, observability.StatusSuccess, time.Since(start))
	logger.Info("Received VAU certificate",
		logging.String("subject", cert.Subject.String()),
		logging.Duration("duration", time.Since(start)),
	)
	return cert, nil
}

// Send encrypts inner with accessToken, posts it to the tunnel and returns
// the decoded answer. resource is the FHIR resource path the request targets;
// it is reported in the X-erp-resource header.
func (c *Channel) Send(ctx context.Context, inner *innerhttp.Request, accessToken, resource string) (result *Result, err error) {
	c.mu.Lock()
	state, protocol, pseudonym := c.state, c.protocol, c.pseudonym
	c.mu.Unlock()

	if state != StateReady {
		return nil, erperrors.ChannelNotReady(state.String())
	}

	ctx, span := observability.StartSpan(ctx, c.tracer, "vau.send", trace.SpanKindClient,
		observability.AttrResource.String(resource),
		observability.AttrPseudonym.String(string(pseudonym)),
	)
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	outcome := OutcomeError
	defer func() {
		c.metrics.RecordVauSend(ctx, outcome, time.Since(start))
	}()

	envelope, err := protocol.Encrypt(accessToken, innerhttp.Encode(inner))
	if err != nil {
		return nil, erperrors.VauEncryptionError(err)
	}
	span.SetAttributes(observability.AttrVauRequest.String(envelope.RequestID()))

	endpoint := c.config.SendURL(pseudonym)
	logger := c.logger.WithContext(ctx).WithFields(
		logging.String("endpoint", endpoint),
		logging.String("vau_request_id", envelope.RequestID()),
	)

	header := http.Header{}
	header.Set(HeaderContentType, ContentTypeEncrypted)
	header.Set(HeaderErpUser, c.config.ClientType.ErpUser())
	if r := strings.TrimPrefix(resource, "/"); r != "" {
		header.Set(HeaderErpResource, r)
	} else {
		logger.Warn("Resource is not set, sending without X-erp-resource")
	}
	c.setIdentityHeaders(header)

	logger.Info("Sending VAU request", logging.String("method", inner.Method))
	resp, err := c.transport.RoundTrip(ctx, &transport.Request{
		Method:    http.MethodPost,
		URL:       endpoint,
		Header:    header,
		Body:      envelope.Ciphertext(),
		Operation: "send",
	})
	if err != nil {
		return nil, err
	}

	result, err = c.receive(endpoint, envelope, resp)
	if err != nil {
		if erperrors.IsCode(err, erperrors.CodeUnencryptedGateway) {
			outcome = OutcomeGatewayError
		}
		logger.WithError(err).Error("VAU response could not be read", logging.Int("status", resp.StatusCode))
		return nil, err
	}

	outcome = OutcomePlaintext
	if result.Encrypted {
		outcome = OutcomeEncrypted
	}
	span.SetAttributes(observability.AttrStatusCode.Int(result.Response.StatusCode))
	logger.Info("Received VAU response",
		logging.Int("status", resp.StatusCode),
		logging.Int("inner_status", result.Response.StatusCode),
		logging.String("request_id", result.RequestID),
		logging.String("pseudonym", string(result.Pseudonym)),
		logging.Bool("encrypted", result.Encrypted),
		logging.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// receive stores the pseudonym and classifies the outer response
func (c *Channel) receive(endpoint string, envelope Envelope, resp *transport.Response) (*Result, error) {
	pseudonym := UserPseudonym(resp.Header.Get(HeaderUserPseudonym)).OrInitial()
	c.mu.Lock()
	c.pseudonym = pseudonym
	c.mu.Unlock()

	result := &Result{
		Pseudonym:    pseudonym,
		RequestID:    resp.Header.Get(HeaderRequestID),
		VauRequestID: envelope.RequestID(),
	}

	contentType := resp.Header.Get(HeaderContentType)
	if !strings.Contains(strings.ToLower(contentType), "octet-stream") {
		result.Response = plaintextResponse(resp)
		return result, nil
	}

	if !resp.IsSuccess() {
		return nil, erperrors.UnencryptedGatewayError(endpoint, resp.StatusCode, contentType, result.RequestID, resp.Body)
	}

	plaintext, err := envelope.Decrypt(resp.Body)
	if err != nil {
		return nil, erperrors.VauDecryptionError(envelope.RequestID(), len(resp.Body), err)
	}

	inner, err := innerhttp.Decode(plaintext)
	if err != nil {
		return nil, err
	}

	result.Response = inner
	result.Encrypted = true
	return result, nil
}

// setIdentityHeaders adds the optional caller headers; empty values are omitted
func (c *Channel) setIdentityHeaders(header http.Header) {
	if c.config.UserAgent != "" {
		header.Set(HeaderUserAgent, c.config.UserAgent)
	}
	if c.config.ClientType == ClientTypeFdV && c.config.APIKey != "" {
		header.Set(HeaderAPIKey, c.config.APIKey)
	}
}

// plaintextResponse passes an unencrypted answer through. Multi-valued
// headers keep their first value.
func plaintextResponse(resp *transport.Response) *innerhttp.Response {
	header := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		header[key] = resp.Header.Get(key)
	}
	return &innerhttp.Response{
		Protocol:   innerhttp.Protocol,
		StatusCode: resp.StatusCode,
		Reason:     http.StatusText(resp.StatusCode),
		Header:     header,
		Body:       string(resp.Body),
	}
}
