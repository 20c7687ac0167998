package auth_test

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/erp-vau-go/pkg/auth"
	erperrors "github.com/ajitpratap0/erp-vau-go/pkg/errors"
	"github.com/ajitpratap0/erp-vau-go/pkg/observability"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 18, 18, 56, 45, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingAuthenticator issues token-1, token-2, ...
type countingAuthenticator struct {
	calls     int32
	expiresIn time.Duration
}

func (a *countingAuthenticator) Authenticate(ctx context.Context) auth.AuthResult {
	n := atomic.AddInt32(&a.calls, 1)
	return auth.Succeeded("token-"+string(rune('0'+n)), a.expiresIn)
}

func (a *countingAuthenticator) Calls() int {
	return int(atomic.LoadInt32(&a.calls))
}

func TestRefreshKeepsValidToken(t *testing.T) {
	clock := newFakeClock()
	authenticator := &countingAuthenticator{expiresIn: 300 * time.Second}
	provider := auth.NewTokenProvider(authenticator, auth.WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, provider.Refresh(ctx))
	clock.Advance(299 * time.Second)
	require.NoError(t, provider.Refresh(ctx))

	assert.Equal(t, 1, authenticator.Calls())

	token, ok := provider.Current()
	require.True(t, ok)
	assert.Equal(t, "token-1", token.Value)
	assert.Equal(t, clock.Now().Add(-299*time.Second), token.IssuedAt)
}

func TestRefreshAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	authenticator := &countingAuthenticator{expiresIn: 300 * time.Second}
	provider := auth.NewTokenProvider(authenticator, auth.WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, provider.Refresh(ctx))

	// expiry is inclusive
	clock.Advance(300 * time.Second)
	token, err := provider.Token(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, authenticator.Calls())
	assert.Equal(t, "token-2", token.Value)
	assert.Equal(t, clock.Now(), token.IssuedAt)
}

func TestInvalidateForcesAuthentication(t *testing.T) {
	authenticator := &countingAuthenticator{expiresIn: time.Hour}
	provider := auth.NewTokenProvider(authenticator)
	ctx := context.Background()

	require.NoError(t, provider.Refresh(ctx))
	provider.Invalidate()

	_, ok := provider.Current()
	assert.False(t, ok)

	require.NoError(t, provider.Refresh(ctx))
	assert.Equal(t, 2, authenticator.Calls())
}

func TestConcurrentRefreshAuthenticatesOnce(t *testing.T) {
	authenticator := &countingAuthenticator{expiresIn: time.Hour}
	provider := auth.NewTokenProvider(authenticator)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, provider.Refresh(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, authenticator.Calls())
}

func TestRefreshFailures(t *testing.T) {
	cause := errors.New("IDP rejected the challenge signature")

	tests := []struct {
		name          string
		authenticator auth.Authenticator
		code          int
		cause         error
	}{
		{
			name: "failed result",
			authenticator: auth.AuthenticatorFunc(func(context.Context) auth.AuthResult {
				return auth.Failed(cause)
			}),
			code:  erperrors.CodeAuthenticationRuntime,
			cause: cause,
		},
		{
			name: "failed result without cause",
			authenticator: auth.AuthenticatorFunc(func(context.Context) auth.AuthResult {
				return auth.Failed(nil)
			}),
			code:  erperrors.CodeAuthenticationRuntime,
			cause: auth.ErrAuthenticationFailed,
		},
		{
			name: "empty token",
			authenticator: auth.AuthenticatorFunc(func(context.Context) auth.AuthResult {
				return auth.Succeeded("", time.Minute)
			}),
			code:  erperrors.CodeAuthenticationRuntime,
			cause: auth.ErrEmptyToken,
		},
		{
			name: "panicking collaborator",
			authenticator: auth.AuthenticatorFunc(func(context.Context) auth.AuthResult {
				panic(cause)
			}),
			code:  erperrors.CodeAuthenticationRuntime,
			cause: cause,
		},
		{
			name:          "no authenticator",
			authenticator: nil,
			code:          erperrors.CodeTokenUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := auth.NewTokenProvider(tt.authenticator)

			err := provider.Refresh(context.Background())
			require.Error(t, err)
			assert.True(t, erperrors.IsCode(err, tt.code), "got %v", err)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}

			_, ok := provider.Current()
			assert.False(t, ok)
		})
	}
}

func TestPanicWithNonErrorValue(t *testing.T) {
	provider := auth.NewTokenProvider(auth.AuthenticatorFunc(func(context.Context) auth.AuthResult {
		panic("card removed")
	}), auth.WithStrategy("smartcard"))

	err := provider.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "card removed")
	assert.Contains(t, err.Error(), "smartcard")
}

func TestRefreshRecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := observability.NewMetricsProvider(observability.MetricsConfig{Registerer: registry, Gatherer: registry})
	require.NoError(t, err)

	clock := newFakeClock()
	provider := auth.NewTokenProvider(&countingAuthenticator{expiresIn: time.Minute},
		auth.WithClock(clock.Now), auth.WithMetrics(metrics))

	require.NoError(t, provider.Refresh(context.Background()))
	require.NoError(t, provider.Refresh(context.Background()))
	clock.Advance(time.Minute)
	require.NoError(t, provider.Refresh(context.Background()))

	families, err := registry.Gather()
	require.NoError(t, err)

	refreshes := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "erp_vau_token_refresh_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "status" {
					refreshes[label.GetValue()] += metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, map[string]float64{observability.StatusSuccess: 2}, refreshes)
}

func TestBearerToken(t *testing.T) {
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	token := auth.BearerToken{Value: "eyJhbGciOiJCUDI1NlIxIn0.payload.signature", IssuedAt: issued, ExpiresIn: 5 * time.Minute}

	assert.False(t, token.Expired(issued))
	assert.False(t, token.Expired(issued.Add(5*time.Minute-time.Nanosecond)))
	assert.True(t, token.Expired(issued.Add(5*time.Minute)))
	assert.Equal(t, issued.Add(5*time.Minute), token.ExpiresAt())
	assert.True(t, auth.BearerToken{}.Expired(issued))

	assert.NotContains(t, token.String(), "payload")
	assert.Contains(t, token.String(), "ture")
}

type fakeIdentityProvider struct {
	signerCalls    int
	challengeCalls int
	signature      []byte
}

func (f *fakeIdentityProvider) LoginWithSigner(ctx context.Context, cert *x509.Certificate, signer crypto.Signer) auth.AuthResult {
	f.signerCalls++
	if signer == nil || cert == nil {
		return auth.Failed(errors.New("missing identity"))
	}
	return auth.Succeeded("smartcard-token", time.Minute)
}

func (f *fakeIdentityProvider) LoginWithChallenge(ctx context.Context, cert *x509.Certificate, sign auth.ChallengeSigner) auth.AuthResult {
	f.challengeCalls++
	signature, err := sign(ctx, []byte("challenge"))
	if err != nil {
		return auth.Failed(err)
	}
	f.signature = signature
	return auth.Succeeded("connector-token", time.Minute)
}

func TestBindSigner(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	idp := &fakeIdentityProvider{}

	provider := auth.NewTokenProvider(auth.BindSigner(idp, &x509.Certificate{}, key))
	token, err := provider.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "smartcard-token", token.Value)
	assert.Equal(t, 1, idp.signerCalls)
	assert.Zero(t, idp.challengeCalls)
}

func TestBindChallenge(t *testing.T) {
	idp := &fakeIdentityProvider{}
	sign := func(ctx context.Context, challenge []byte) ([]byte, error) {
		return append([]byte("signed:"), challenge...), nil
	}

	provider := auth.NewTokenProvider(auth.BindChallenge(idp, &x509.Certificate{}, sign))
	token, err := provider.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "connector-token", token.Value)
	assert.Equal(t, []byte("signed:challenge"), idp.signature)
	assert.Equal(t, 1, idp.challengeCalls)
}

func TestBindChallengeFailureNamesStrategy(t *testing.T) {
	idp := &fakeIdentityProvider{}
	connectorDown := errors.New("connector unreachable")
	sign := func(context.Context, []byte) ([]byte, error) { return nil, connectorDown }

	err := auth.NewTokenProvider(auth.BindChallenge(idp, &x509.Certificate{}, sign)).Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, connectorDown)

	erpErr, ok := erperrors.AsErpError(err)
	require.True(t, ok)
	assert.Equal(t, auth.StrategyConnector, erpErr.Data().(*erperrors.AuthErrorData).Strategy)
}
