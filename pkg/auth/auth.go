// Package auth manages the bearer token that authorizes every inner request.
// A TokenProvider keeps one token per session and asks its Authenticator for a
// new one only when the current token has expired. Authenticators are usually
// an IdentityProvider bound to a signing capability with BindSigner or
// BindChallenge.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/ajitpratap0/erp-vau-go/pkg/logging"
)

// BearerToken is an access token issued by the identity provider. It is never
// modified; a refresh replaces it.
type BearerToken struct {
	Value     string
	IssuedAt  time.Time
	ExpiresIn time.Duration
}

// Expired reports whether the token is unusable at now. A token is expired once
// ExpiresIn has fully elapsed since IssuedAt.
func (t BearerToken) Expired(now time.Time) bool {
	return t.Value == "" || now.Sub(t.IssuedAt) >= t.ExpiresIn
}

// ExpiresAt is the first instant at which the token is expired
func (t BearerToken) ExpiresAt() time.Time {
	return t.IssuedAt.Add(t.ExpiresIn)
}

// String renders the token redacted
func (t BearerToken) String() string {
	return logging.Redact(t.Value)
}

// AuthResult is the outcome of one authentication: either a token with its
// lifetime, or the cause of the failure.
type AuthResult struct {
	token     string
	expiresIn time.Duration
	err       error
}

// Succeeded creates a successful result
func Succeeded(token string, expiresIn time.Duration) AuthResult {
	return AuthResult{token: token, expiresIn: expiresIn}
}

// Failed creates a failed result. A nil cause is replaced by ErrAuthenticationFailed.
func Failed(cause error) AuthResult {
	if cause == nil {
		cause = ErrAuthenticationFailed
	}
	return AuthResult{err: cause}
}

// OK reports whether the authentication succeeded
func (r AuthResult) OK() bool {
	return r.err == nil
}

// Token returns the access token and its lifetime
func (r AuthResult) Token() (string, time.Duration) {
	return r.token, r.expiresIn
}

// Err returns the cause of a failed authentication
func (r AuthResult) Err() error {
	return r.err
}

var (
	// ErrAuthenticationFailed is the cause of a Failed result created without one
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrEmptyToken is reported when an authenticator succeeds without a token
	ErrEmptyToken = errors.New("authenticator returned an empty token")
)

// Authenticator obtains a fresh access token
type Authenticator interface {
	Authenticate(ctx context.Context) AuthResult
}

// AuthenticatorFunc adapts a function to the Authenticator interface
type AuthenticatorFunc func(ctx context.Context) AuthResult

// Authenticate implements Authenticator
func (f AuthenticatorFunc) Authenticate(ctx context.Context) AuthResult {
	return f(ctx)
}
