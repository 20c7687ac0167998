package vau

import (
	"crypto/x509"
)

// CryptoProvider derives the session crypto context from the tunnel
// certificate. An environment without the required algorithms reports the
// failure from NewProtocol; the channel returns that error unmodified.
type CryptoProvider interface {
	NewProtocol(cert *x509.Certificate) (Protocol, error)
}

// Protocol seals inner requests for one tunnel certificate. Implementations
// must be safe for concurrent use.
type Protocol interface {
	// Encrypt seals the encoded inner request together with the access token.
	Encrypt(accessToken string, inner []byte) (Envelope, error)
}

// Envelope is one sealed request. It holds the per-request key needed to
// open the matching response.
type Envelope interface {
	// Ciphertext is the outer request body
	Ciphertext() []byte
	// RequestID identifies the request inside the tunnel
	RequestID() string
	// Decrypt opens the outer response body and returns the encoded inner
	// response, including the leading status line tokens.
	Decrypt(ciphertext []byte) ([]byte, error)
}
