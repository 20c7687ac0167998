package vau

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// VAU v1 message layout.
//
//	request plaintext:   "1" SP token SP requestID SP responseKey SP inner
//	request ciphertext:  0x01 || X(32) || Y(32) || IV(12) || AES-GCM(plaintext)
//	response plaintext:  "1" SP requestID SP inner
//	response ciphertext: IV(12) || AES-GCM(plaintext)
//
// requestID and responseKey are 16 random bytes, hex encoded. The request key
// is HKDF-SHA256 over the ECDH secret of an ephemeral P-256 key and the
// certificate key. The leading tokens of the response plaintext are the
// status line prefix of the inner response and are left in place by Decrypt.
const (
	messageVersion  = "1"
	eciesVersion    = 0x01
	hkdfInfo        = "ecies-vau-transport"
	keySize         = 16
	nonceSize       = 12
	tagSize         = 16
	coordinateSize  = 32
	requestIDSize   = 16
	eciesHeaderSize = 1 + 2*coordinateSize
)

var (
	// ErrUnsupportedKey is returned for certificates without a P-256 ECDSA key
	ErrUnsupportedKey = errors.New("vau: tunnel certificate does not carry a P-256 ECDSA key")

	errShortCiphertext = errors.New("vau: ciphertext too short")
)

// ECIESProvider is the default CryptoProvider
type ECIESProvider struct {
	// Rand is the entropy source; nil selects crypto/rand.Reader
	Rand io.Reader
}

// NewProtocol implements CryptoProvider
func (p ECIESProvider) NewProtocol(cert *x509.Certificate) (Protocol, error) {
	if cert == nil {
		return nil, ErrUnsupportedKey
	}
	pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok || pub.Curve.Params().Name != "P-256" {
		return nil, ErrUnsupportedKey
	}
	key, err := pub.ECDH()
	if err != nil {
		return nil, err
	}
	return &eciesProtocol{serverKey: key, rand: entropy(p.Rand)}, nil
}

type eciesProtocol struct {
	serverKey *ecdh.PublicKey
	rand      io.Reader
}

func (p *eciesProtocol) Encrypt(accessToken string, inner []byte) (Envelope, error) {
	requestID, err := randomBytes(p.rand, requestIDSize)
	if err != nil {
		return nil, err
	}
	responseKey, err := randomBytes(p.rand, keySize)
	if err != nil {
		return nil, err
	}

	var plaintext bytes.Buffer
	plaintext.Grow(len(accessToken) + len(inner) + 4*requestIDSize + 8)
	plaintext.WriteString(messageVersion + " ")
	plaintext.WriteString(accessToken + " ")
	plaintext.WriteString(hex.EncodeToString(requestID) + " ")
	plaintext.WriteString(hex.EncodeToString(responseKey) + " ")
	plaintext.Write(inner)

	ephemeral, err := ecdh.P256().GenerateKey(p.rand)
	if err != nil {
		return nil, err
	}
	secret, err := ephemeral.ECDH(p.serverKey)
	if err != nil {
		return nil, err
	}
	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}

	sealed, err := seal(p.rand, key, plaintext.Bytes())
	if err != nil {
		return nil, err
	}

	// uncompressed point without the 0x04 marker
	point := ephemeral.PublicKey().Bytes()[1:]

	ciphertext := make([]byte, 0, 1+len(point)+len(sealed))
	ciphertext = append(ciphertext, eciesVersion)
	ciphertext = append(ciphertext, point...)
	ciphertext = append(ciphertext, sealed...)

	return &eciesEnvelope{
		ciphertext:  ciphertext,
		requestID:   hex.EncodeToString(requestID),
		responseKey: responseKey,
	}, nil
}

type eciesEnvelope struct {
	ciphertext  []byte
	requestID   string
	responseKey []byte
}

func (e *eciesEnvelope) Ciphertext() []byte { return e.ciphertext }

func (e *eciesEnvelope) RequestID() string { return e.requestID }

func (e *eciesEnvelope) Decrypt(ciphertext []byte) ([]byte, error) {
	plaintext, err := open(e.responseKey, ciphertext)
	if err != nil {
		return nil, err
	}

	prefix := []byte(messageVersion + " " + e.requestID + " ")
	if !bytes.HasPrefix(plaintext, prefix) {
		return nil, fmt.Errorf("vau: response does not belong to request %s", e.requestID)
	}
	return plaintext, nil
}

// OpenedRequest is a request decrypted by a Responder
type OpenedRequest struct {
	AccessToken string
	RequestID   string
	Inner       []byte

	responseKey []byte
}

// Responder is the server half of the ECIES scheme
type Responder struct {
	key  *ecdh.PrivateKey
	rand io.Reader
}

// NewResponder creates a responder for the private key of the tunnel certificate
func NewResponder(key *ecdsa.PrivateKey, random io.Reader) (*Responder, error) {
	if key == nil || key.Curve.Params().Name != "P-256" {
		return nil, ErrUnsupportedKey
	}
	ecdhKey, err := key.ECDH()
	if err != nil {
		return nil, err
	}
	return &Responder{key: ecdhKey, rand: entropy(random)}, nil
}

// Open decrypts an outer request body
func (r *Responder) Open(ciphertext []byte) (*OpenedRequest, error) {
	if len(ciphertext) < eciesHeaderSize+nonceSize+tagSize {
		return nil, errShortCiphertext
	}
	if ciphertext[0] != eciesVersion {
		return nil, fmt.Errorf("vau: unsupported ECIES version 0x%02x", ciphertext[0])
	}

	point := append([]byte{0x04}, ciphertext[1:eciesHeaderSize]...)
	ephemeral, err := ecdh.P256().NewPublicKey(point)
	if err != nil {
		return nil, err
	}
	secret, err := r.key.ECDH(ephemeral)
	if err != nil {
		return nil, err
	}
	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}

	plaintext, err := open(key, ciphertext[eciesHeaderSize:])
	if err != nil {
		return nil, err
	}

	parts := bytes.SplitN(plaintext, []byte(" "), 5)
	if len(parts) != 5 || string(parts[0]) != messageVersion {
		return nil, errors.New("vau: malformed request plaintext")
	}
	responseKey, err := hex.DecodeString(string(parts[3]))
	if err != nil || len(responseKey) != keySize {
		return nil, errors.New("vau: malformed response key")
	}

	return &OpenedRequest{
		AccessToken: string(parts[1]),
		RequestID:   string(parts[2]),
		Inner:       parts[4],
		responseKey: responseKey,
	}, nil
}

// Seal encrypts an encoded inner response for req. The version and request id
// tokens are prepended, so inner must not carry a status line prefix.
func (r *Responder) Seal(req *OpenedRequest, inner []byte) ([]byte, error) {
	plaintext := make([]byte, 0, len(inner)+len(req.RequestID)+4)
	plaintext = append(plaintext, messageVersion+" "+req.RequestID+" "...)
	plaintext = append(plaintext, inner...)
	return seal(r.rand, req.responseKey, plaintext)
}

func deriveKey(secret []byte) ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, err
	}
	return key, nil
}

// seal returns IV || AES-GCM(plaintext)
func seal(random io.Reader, key, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce, err := randomBytes(random, nonceSize)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nonceSize+tagSize {
		return nil, errShortCiphertext
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func randomBytes(random io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(random, b); err != nil {
		return nil, err
	}
	return b, nil
}

func entropy(r io.Reader) io.Reader {
	if r == nil {
		return rand.Reader
	}
	return r
}
