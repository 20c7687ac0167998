package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	erperrors "github.com/ajitpratap0/erp-vau-go/pkg/errors"
)

// HTTPTransport sends one HTTP request per RoundTrip and reads the full body.
// Dial failures are reported as ConnectionTimeout or ConnectionFailed; every
// other failure as OperationFailed, OperationTimeout or OperationCanceled.
type HTTPTransport struct {
	client         *http.Client
	connectTimeout time.Duration
	requestTimeout time.Duration
}

// NewHTTPTransport creates an HTTP transport from the connection settings
func NewHTTPTransport(config ConnectionConfig) (*HTTPTransport, error) {
	minVersion, err := tlsVersion(config.TLS.MinVersion)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{
		Timeout:   config.ConnectTimeout,
		KeepAlive: config.KeepAlive,
	}

	roundTripper := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        config.MaxIdleConns,
		IdleConnTimeout:     config.IdleConnTimeout,
		TLSHandshakeTimeout: config.ConnectTimeout,
		TLSClientConfig: &tls.Config{
			MinVersion:         minVersion,
			ServerName:         config.TLS.ServerName,
			InsecureSkipVerify: config.TLS.InsecureSkipVerify,
		},
	}

	return &HTTPTransport{
		client: &http.Client{
			Transport: roundTripper,
			Timeout:   config.RequestTimeout,
		},
		connectTimeout: config.ConnectTimeout,
		requestTimeout: config.RequestTimeout,
	}, nil
}

// NewHTTPTransportWithClient wraps an existing client, e.g. the one of an
// httptest.Server.
func NewHTTPTransportWithClient(client *http.Client) *HTTPTransport {
	return &HTTPTransport{client: client, requestTimeout: client.Timeout}
}

// RoundTrip implements Transport
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	operation := operationName(req)

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, erperrors.HTTPTransportError(operation, req.URL, 0, err)
	}
	httpReq.Header = cloneHeader(req.Header)
	if _, ok := httpReq.Header["User-Agent"]; !ok {
		// an empty value keeps net/http from sending its default agent
		httpReq.Header["User-Agent"] = []string{""}
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, t.classify(ctx, operation, req.URL, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, erperrors.HTTPTransportError(operation, req.URL, httpResp.StatusCode, err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}

func (t *HTTPTransport) classify(ctx context.Context, operation, endpoint string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return erperrors.OperationCanceled(operation, ctxErr)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		if opErr.Timeout() {
			return erperrors.ConnectionTimeout(endpoint, t.connectTimeout, err)
		}
		return erperrors.ConnectionFailed(endpoint, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return erperrors.OperationTimeout(operation, endpoint, t.requestTimeout, err)
	}

	return erperrors.HTTPTransportError(operation, endpoint, 0, err)
}

func tlsVersion(v string) (uint16, error) {
	switch v {
	case "", "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, erperrors.InvalidParameter("connection.tls.min_version", v, `"1.2" or "1.3"`)
	}
}

func operationName(req *Request) string {
	if req.Operation != "" {
		return req.Operation
	}
	return req.Method
}
