package vau

import (
	"fmt"
	"net/url"
	"strings"

	erperrors "github.com/ajitpratap0/erp-vau-go/pkg/errors"
)

// Outer header names used on the tunnel surface
const (
	HeaderErpUser       = "X-erp-user"
	HeaderErpResource   = "X-erp-resource"
	HeaderAPIKey        = "X-api-key"
	HeaderUserAgent     = "User-Agent"
	HeaderUserPseudonym = "Userpseudonym"
	HeaderRequestID     = "X-Request-Id"
	HeaderContentType   = "Content-Type"

	// ContentTypeEncrypted marks ciphertext bodies in both directions
	ContentTypeEncrypted = "application/octet-stream"

	certificatePath = "/VAUCertificate"
	sendPath        = "/VAU/"
)

// ClientType distinguishes the two kinds of callers of the service
type ClientType string

const (
	// ClientTypePS is a care provider system (pharmacy, practice, hospital)
	ClientTypePS ClientType = "ps"
	// ClientTypeFdV is an insurant app; it authenticates with an API key
	ClientTypeFdV ClientType = "fdv"
)

// ErpUser returns the X-erp-user header value: "v" for insurant apps, "l" otherwise
func (t ClientType) ErpUser() string {
	if t == ClientTypeFdV {
		return "v"
	}
	return "l"
}

// Valid reports whether t is a known client type
func (t ClientType) Valid() bool {
	return t == ClientTypePS || t == ClientTypeFdV
}

// ParseClientType parses a client type case-insensitively
func ParseClientType(s string) (ClientType, error) {
	t := ClientType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown client type %q", s)
	}
	return t, nil
}

// UserPseudonym is the opaque session token returned in the Userpseudonym
// header and echoed in the path of the next request.
type UserPseudonym string

// InitialPseudonym opens a new session
const InitialPseudonym UserPseudonym = "0"

// OrInitial returns p, or InitialPseudonym when p is empty
func (p UserPseudonym) OrInitial() UserPseudonym {
	if p == "" {
		return InitialPseudonym
	}
	return p
}

// State is the lifecycle state of a Channel
type State int

const (
	StateUninitialized State = iota
	StateCertificateFetched
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCertificateFetched:
		return "certificate_fetched"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config identifies the tunnel endpoint and the calling client
type Config struct {
	// BaseURL of the service, e.g. https://erp-ref.example
	BaseURL    string     `json:"base_url" koanf:"base_url"`
	ClientType ClientType `json:"client_type" koanf:"client_type"`
	// APIKey is sent as X-api-key by insurant clients only
	APIKey    string `json:"-" koanf:"api_key"`
	UserAgent string `json:"user_agent,omitempty" koanf:"user_agent"`
}

// Validate checks the base URL and client type
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return erperrors.InvalidConfiguration("vau", "base_url", "must not be empty")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return erperrors.InvalidConfiguration("vau", "base_url", fmt.Sprintf("%q is not an absolute http(s) URL", c.BaseURL))
	}
	if !c.ClientType.Valid() {
		return erperrors.InvalidConfiguration("vau", "client_type", fmt.Sprintf("unknown client type %q", c.ClientType))
	}
	return nil
}

func (c Config) baseURL() string {
	return strings.TrimRight(c.BaseURL, "/")
}

// CertificateURL is the endpoint serving the DER encoded tunnel certificate
func (c Config) CertificateURL() string {
	return c.baseURL() + certificatePath
}

// SendURL is the endpoint receiving ciphertext for the given session
func (c Config) SendURL(pseudonym UserPseudonym) string {
	return c.baseURL() + sendPath + url.PathEscape(string(pseudonym.OrInitial()))
}
