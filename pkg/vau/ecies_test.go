package vau_test

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/erp-vau-go/pkg/vau"
	"github.com/ajitpratap0/erp-vau-go/pkg/vau/vautest"
)

func TestECIESRoundTrip(t *testing.T) {
	key, cert := vautest.NewIdentity(t)

	protocol, err := vau.ECIESProvider{}.NewProtocol(cert)
	require.NoError(t, err)
	responder, err := vau.NewResponder(key, nil)
	require.NoError(t, err)

	inner := []byte("GET Task HTTP/1.1\r\nAccept: application/fhir+json\r\n\r\n")
	envelope, err := protocol.Encrypt(accessToken, inner)
	require.NoError(t, err)

	ciphertext := envelope.Ciphertext()
	assert.Equal(t, byte(0x01), ciphertext[0])
	assert.Len(t, envelope.RequestID(), 32)
	assert.False(t, bytes.Contains(ciphertext, []byte(accessToken)))

	opened, err := responder.Open(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, accessToken, opened.AccessToken)
	assert.Equal(t, envelope.RequestID(), opened.RequestID)
	assert.Equal(t, inner, opened.Inner)

	sealed, err := responder.Seal(opened, []byte("HTTP/1.1 200 OK\r\n\r\n"))
	require.NoError(t, err)

	plaintext, err := envelope.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "1 "+envelope.RequestID()+" HTTP/1.1 200 OK\r\n\r\n", string(plaintext))
}

func TestECIESEnvelopesAreIndependent(t *testing.T) {
	key, cert := vautest.NewIdentity(t)
	protocol, err := vau.ECIESProvider{}.NewProtocol(cert)
	require.NoError(t, err)
	responder, err := vau.NewResponder(key, nil)
	require.NoError(t, err)

	first, err := protocol.Encrypt(accessToken, []byte("GET Task HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	second, err := protocol.Encrypt(accessToken, []byte("GET Task HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	assert.NotEqual(t, first.RequestID(), second.RequestID())
	assert.NotEqual(t, first.Ciphertext(), second.Ciphertext())

	opened, err := responder.Open(second.Ciphertext())
	require.NoError(t, err)
	sealed, err := responder.Seal(opened, []byte("HTTP/1.1 200 OK\r\n\r\n"))
	require.NoError(t, err)

	// the response key of one request cannot open the answer to another
	_, err = first.Decrypt(sealed)
	assert.Error(t, err)
}

func TestECIESRejectsForeignResponse(t *testing.T) {
	key, cert := vautest.NewIdentity(t)
	protocol, err := vau.ECIESProvider{}.NewProtocol(cert)
	require.NoError(t, err)
	responder, err := vau.NewResponder(key, nil)
	require.NoError(t, err)

	envelope, err := protocol.Encrypt(accessToken, []byte("GET Task HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	opened, err := responder.Open(envelope.Ciphertext())
	require.NoError(t, err)

	opened.RequestID = strings.Repeat("0", 32)
	sealed, err := responder.Seal(opened, []byte("HTTP/1.1 200 OK\r\n\r\n"))
	require.NoError(t, err)

	_, err = envelope.Decrypt(sealed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not belong to request")
}

func TestECIESDecryptShortInput(t *testing.T) {
	_, cert := vautest.NewIdentity(t)
	protocol, err := vau.ECIESProvider{}.NewProtocol(cert)
	require.NoError(t, err)
	envelope, err := protocol.Encrypt(accessToken, nil)
	require.NoError(t, err)

	_, err = envelope.Decrypt([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestECIESUnsupportedKey(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	cert := &x509.Certificate{PublicKey: &key.PublicKey}

	_, err = vau.ECIESProvider{}.NewProtocol(cert)
	assert.ErrorIs(t, err, vau.ErrUnsupportedKey)

	_, err = vau.ECIESProvider{}.NewProtocol(nil)
	assert.ErrorIs(t, err, vau.ErrUnsupportedKey)

	_, err = vau.NewResponder(key, nil)
	assert.ErrorIs(t, err, vau.ErrUnsupportedKey)
}

func TestResponderRejectsGarbage(t *testing.T) {
	key, _ := vautest.NewIdentity(t)
	responder, err := vau.NewResponder(key, nil)
	require.NoError(t, err)

	_, err = responder.Open([]byte("short"))
	assert.Error(t, err)

	garbage := make([]byte, 128)
	garbage[0] = 0x02
	_, err = responder.Open(garbage)
	assert.Error(t, err)
}
