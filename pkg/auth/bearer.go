package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	erperrors "github.com/ajitpratap0/erp-vau-go/pkg/errors"
	"github.com/ajitpratap0/erp-vau-go/pkg/logging"
	"github.com/ajitpratap0/erp-vau-go/pkg/observability"
)

// TokenProvider keeps the bearer token of one session
type TokenProvider struct {
	authenticator Authenticator
	strategy      string
	now           func() time.Time
	logger        logging.Logger
	metrics       observability.MetricsProvider

	mu    sync.Mutex
	token BearerToken
}

// ProviderOption configures a TokenProvider
type ProviderOption func(*TokenProvider)

// WithClock replaces time.Now
func WithClock(now func() time.Time) ProviderOption {
	return func(p *TokenProvider) {
		p.now = now
	}
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) ProviderOption {
	return func(p *TokenProvider) {
		p.logger = l
	}
}

// WithMetrics sets the metrics provider
func WithMetrics(m observability.MetricsProvider) ProviderOption {
	return func(p *TokenProvider) {
		p.metrics = m
	}
}

// WithStrategy names the authentication strategy in errors and logs. Bound
// authenticators report their strategy themselves.
func WithStrategy(strategy string) ProviderOption {
	return func(p *TokenProvider) {
		p.strategy = strategy
	}
}

// NewTokenProvider creates a provider without a token. The first Refresh
// authenticates.
func NewTokenProvider(authenticator Authenticator, options ...ProviderOption) *TokenProvider {
	p := &TokenProvider{
		authenticator: authenticator,
		strategy:      strategyOf(authenticator),
		now:           time.Now,
	}
	for _, option := range options {
		option(p)
	}
	p.logger = logging.OrNop(p.logger).WithFields(logging.String("component", "TokenProvider"))
	p.metrics = observability.OrNoop(p.metrics)
	return p
}

// Refresh authenticates unless the current token is still valid.
func (p *TokenProvider) Refresh(ctx context.Context) error {
	_, err := p.Token(ctx)
	return err
}

// Token refreshes if needed and returns the current token
func (p *TokenProvider) Token(ctx context.Context) (BearerToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger := p.logger.WithContext(ctx)
	if !p.token.Expired(p.now()) {
		logger.Debug("Bearer token is still valid", logging.Any("expires_at", p.token.ExpiresAt()))
		return p.token, nil
	}

	logger.Info("Refreshing bearer token", logging.String("strategy", p.strategy))
	token, err := p.authenticate(ctx)
	if err != nil {
		p.metrics.RecordTokenRefresh(ctx, observability.StatusError)
		logger.WithError(err).Error("Bearer token refresh failed")
		return BearerToken{}, err
	}

	p.token = token
	p.metrics.RecordTokenRefresh(ctx, observability.StatusSuccess)
	logger.Info("Bearer token refreshed",
		logging.Secret("token", token.Value),
		logging.Duration("expires_in", token.ExpiresIn),
	)
	return token, nil
}

// Current returns the token without refreshing
func (p *TokenProvider) Current() (BearerToken, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token, p.token.Value != ""
}

// Invalidate drops the current token so that the next Refresh authenticates
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = BearerToken{}
}

// authenticate calls the authenticator and stamps the issuance time. Failures,
// empty tokens and panics of the collaborator become AuthenticationRuntimeError.
func (p *TokenProvider) authenticate(ctx context.Context) (token BearerToken, err error) {
	if p.authenticator == nil {
		return BearerToken{}, erperrors.TokenUnavailable("no authenticator bound")
	}

	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("%v", r)
			}
			token, err = BearerToken{}, erperrors.AuthenticationRuntimeError(p.strategy, fmt.Errorf("panic: %w", cause))
		}
	}()

	result := p.authenticator.Authenticate(ctx)
	if !result.OK() {
		return BearerToken{}, erperrors.AuthenticationRuntimeError(p.strategy, result.Err())
	}

	value, expiresIn := result.Token()
	if value == "" {
		return BearerToken{}, erperrors.AuthenticationRuntimeError(p.strategy, ErrEmptyToken)
	}

	return BearerToken{
		Value:     value,
		IssuedAt:  p.now(),
		ExpiresIn: expiresIn,
	}, nil
}
