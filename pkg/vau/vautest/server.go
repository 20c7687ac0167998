// Package vautest provides an in-process VAU tunnel endpoint for tests.
package vautest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/erp-vau-go/pkg/innerhttp"
	"github.com/ajitpratap0/erp-vau-go/pkg/vau"
)

// HandlerFunc answers one decrypted inner request. The response Prefix must be
// empty; the responder adds the version and request id tokens.
type HandlerFunc func(opened *vau.OpenedRequest, inner *innerhttp.Request) *innerhttp.Response

// Exchange is one request received on /VAU/
type Exchange struct {
	Pseudonym string
	Header    http.Header
	Opened    *vau.OpenedRequest
	Inner     *innerhttp.Request
}

// Server serves GET /VAUCertificate and POST /VAU/{pseudonym}
type Server struct {
	*httptest.Server

	Key         *ecdsa.PrivateKey
	Certificate *x509.Certificate
	Responder   *vau.Responder

	mu                  sync.Mutex
	certificateDER      []byte
	handler             HandlerFunc
	override            http.HandlerFunc
	pseudonym           string
	certificateRequests int
	certificateHeaders  []http.Header
	exchanges           []Exchange
}

// NewServer starts a tunnel endpoint with a fresh self-signed P-256
// certificate. handler may be nil; it then answers 200 with an empty body.
// The server is closed when the test ends.
func NewServer(t testing.TB, handler HandlerFunc) *Server {
	t.Helper()

	key, cert := NewIdentity(t)
	responder, err := vau.NewResponder(key, nil)
	require.NoError(t, err)

	s := &Server{
		Key:            key,
		Certificate:    cert,
		Responder:      responder,
		certificateDER: cert.Raw,
		handler:        handler,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/VAUCertificate", s.serveCertificate)
	mux.HandleFunc("/VAU/", s.serveExchange)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)

	return s
}

// NewIdentity creates a P-256 key with a self-signed certificate
func NewIdentity(t testing.TB) (*ecdsa.PrivateKey, *x509.Certificate) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: "erp-vau-test", Organization: []string{"erp-vau-go"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyAgreement | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return key, cert
}

// Handle replaces the inner handler
func (s *Server) Handle(handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Override answers POST /VAU/ with h directly, bypassing decryption
func (s *Server) Override(h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = h
}

// SetPseudonym sets the Userpseudonym header of following answers; empty
// omits the header.
func (s *Server) SetPseudonym(pseudonym string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pseudonym = pseudonym
}

// ServeCertificateBytes replaces the DER served on /VAUCertificate
func (s *Server) ServeCertificateBytes(der []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certificateDER = der
}

// CertificateRequests counts GET /VAUCertificate
func (s *Server) CertificateRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.certificateRequests
}

// CertificateHeaders returns the headers of every certificate request
func (s *Server) CertificateHeaders() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.certificateHeaders...)
}

// Exchanges returns the requests received on /VAU/
func (s *Server) Exchanges() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Exchange(nil), s.exchanges...)
}

func (s *Server) serveCertificate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	s.certificateRequests++
	s.certificateHeaders = append(s.certificateHeaders, r.Header.Clone())
	der := s.certificateDER
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/pkix-cert")
	_, _ = w.Write(der)
}

func (s *Server) serveExchange(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	override, handler, pseudonym := s.override, s.handler, s.pseudonym
	s.mu.Unlock()

	exchange := Exchange{
		Pseudonym: strings.TrimPrefix(r.URL.Path, "/VAU/"),
		Header:    r.Header.Clone(),
	}

	if override != nil {
		s.record(exchange)
		override(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	opened, err := s.Responder.Open(body)
	if err != nil {
		s.record(exchange)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	exchange.Opened = opened

	inner, err := innerhttp.DecodeRequest(opened.Inner)
	if err != nil {
		s.record(exchange)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	exchange.Inner = inner
	s.record(exchange)

	resp := &innerhttp.Response{Protocol: innerhttp.Protocol, StatusCode: http.StatusOK, Reason: "OK"}
	if handler != nil {
		resp = handler(opened, inner)
	}

	sealed, err := s.Responder.Seal(opened, innerhttp.EncodeResponse(resp))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if pseudonym != "" {
		w.Header().Set("Userpseudonym", pseudonym)
	}
	w.Header().Set("X-Request-Id", opened.RequestID)
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(sealed)
}

func (s *Server) record(exchange Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = append(s.exchanges, exchange)
}
