package auth

import (
	"context"
	"crypto"
	"crypto/x509"
)

// Authentication strategies, reported in errors and logs
const (
	StrategySmartcard = "smartcard"
	StrategyConnector = "connector"
)

// ChallengeSigner signs an identity provider challenge outside this process,
// e.g. through the ExternalAuthenticate operation of a connector.
type ChallengeSigner func(ctx context.Context, challenge []byte) ([]byte, error)

// IdentityProvider logs in at the identity provider with an authentication
// certificate and returns the access token.
type IdentityProvider interface {
	// LoginWithSigner signs the challenge with the private key of cert
	LoginWithSigner(ctx context.Context, cert *x509.Certificate, signer crypto.Signer) AuthResult
	// LoginWithChallenge delegates the challenge signature to sign
	LoginWithChallenge(ctx context.Context, cert *x509.Certificate, sign ChallengeSigner) AuthResult
}

// boundAuthenticator fixes the identity and signing capability of a session
type boundAuthenticator struct {
	strategy string
	login    func(ctx context.Context) AuthResult
}

func (b *boundAuthenticator) Authenticate(ctx context.Context) AuthResult {
	return b.login(ctx)
}

// Strategy returns the name of the bound signing capability
func (b *boundAuthenticator) Strategy() string {
	return b.strategy
}

// BindSigner binds idp to a key held in process, e.g. read from a smartcard image
func BindSigner(idp IdentityProvider, cert *x509.Certificate, signer crypto.Signer) Authenticator {
	return &boundAuthenticator{
		strategy: StrategySmartcard,
		login: func(ctx context.Context) AuthResult {
			return idp.LoginWithSigner(ctx, cert, signer)
		},
	}
}

// BindChallenge binds idp to an external challenge signer
func BindChallenge(idp IdentityProvider, cert *x509.Certificate, sign ChallengeSigner) Authenticator {
	return &boundAuthenticator{
		strategy: StrategyConnector,
		login: func(ctx context.Context) AuthResult {
			return idp.LoginWithChallenge(ctx, cert, sign)
		},
	}
}

// strategyOf returns the strategy of a bound authenticator, or "" otherwise
func strategyOf(a Authenticator) string {
	if s, ok := a.(interface{ Strategy() string }); ok {
		return s.Strategy()
	}
	return ""
}
