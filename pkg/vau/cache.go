package vau

import (
	"context"
	"crypto/x509"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	erperrors "github.com/ajitpratap0/erp-vau-go/pkg/errors"
)

// FetchFunc downloads and parses a tunnel certificate
type FetchFunc func(ctx context.Context) (*x509.Certificate, error)

// CertificateCache holds tunnel certificates per endpoint. Concurrent first
// use of an endpoint triggers a single fetch; the certificate is then shared
// read-only until Reset.
type CertificateCache struct {
	mu         sync.Mutex
	group      singleflight.Group
	certs      map[string]*x509.Certificate
	generation uint64
}

// DefaultCertificateCache is the process-wide cache used by channels created
// without WithCertificateCache.
var DefaultCertificateCache = NewCertificateCache()

// NewCertificateCache creates an empty cache
func NewCertificateCache() *CertificateCache {
	return &CertificateCache{certs: make(map[string]*x509.Certificate)}
}

// Get returns the cached certificate of endpoint or populates it with fetch.
// A fetch error is returned to every waiting caller and nothing is cached.
// The shared fetch does not inherit the cancellation of the caller that
// started it; a caller whose ctx ends stops waiting without failing the
// others.
func (c *CertificateCache) Get(ctx context.Context, endpoint string, fetch FetchFunc) (*x509.Certificate, error) {
	c.mu.Lock()
	if cert, ok := c.certs[endpoint]; ok {
		c.mu.Unlock()
		return cert, nil
	}
	generation := c.generation
	c.mu.Unlock()

	// callers after a Reset never join a fetch started before it
	key := strconv.FormatUint(generation, 10) + " " + endpoint
	fetchCtx := context.WithoutCancel(ctx)

	results := c.group.DoChan(key, func() (interface{}, error) {
		c.mu.Lock()
		if cert, ok := c.certs[endpoint]; ok {
			c.mu.Unlock()
			return cert, nil
		}
		c.mu.Unlock()

		cert, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generation == generation {
			c.certs[endpoint] = cert
		}
		c.mu.Unlock()
		return cert, nil
	})

	select {
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*x509.Certificate), nil
	case <-ctx.Done():
		return nil, erperrors.OperationCanceled("certificate fetch", ctx.Err())
	}
}

// Peek returns the cached certificate of endpoint without fetching
func (c *CertificateCache) Peek(endpoint string) (*x509.Certificate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cert, ok := c.certs[endpoint]
	return cert, ok
}

// Reset drops all certificates. Fetches in flight complete for their callers
// but do not repopulate the cache.
func (c *CertificateCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.certs = make(map[string]*x509.Certificate)
}
