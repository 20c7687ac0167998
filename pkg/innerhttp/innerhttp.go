// Package innerhttp encodes and decodes the plaintext pseudo-HTTP messages that
// travel inside the VAU tunnel.
//
// The inner request is a plain HTTP/1.1 request. The inner response status line
// carries opaque tokens in front of the protocol marker (the VAU version and the
// request id echoed by the server):
//
//	1 d225470e5f37dc6b1c3f95fbd651bc5b HTTP/1.1 201 Created
//
// Those tokens are kept verbatim in Response.Prefix and are not interpreted.
package innerhttp

import (
	"strings"
)

const (
	// Protocol is the only protocol marker spoken inside the tunnel.
	Protocol = "HTTP/1.1"

	crlf = "\r\n"
)

// Header is a single inner request header. Requests keep headers as an ordered
// list because the wire order is significant to the server.
type Header struct {
	Key   string
	Value string
}

// Request is an inner HTTP request.
type Request struct {
	Method string
	Path   string
	Header []Header
	Body   []byte
}

// NewRequest creates a request with no headers and no body.
func NewRequest(method, path string) *Request {
	return &Request{Method: method, Path: path}
}

// AddHeader appends a header, keeping insertion order.
func (r *Request) AddHeader(key, value string) *Request {
	r.Header = append(r.Header, Header{Key: key, Value: value})
	return r
}

// Get returns the value of the first header matching key, ignoring case.
func (r *Request) Get(key string) (string, bool) {
	for _, h := range r.Header {
		if strings.EqualFold(h.Key, key) {
			return h.Value, true
		}
	}
	return "", false
}

// Response is a decoded inner HTTP response.
type Response struct {
	// Prefix holds the opaque tokens preceding the protocol marker.
	Prefix     string
	Protocol   string
	StatusCode int
	Reason     string
	Header     map[string]string
	Body       string
}

// Get returns the value of the header matching key, ignoring case.
func (r *Response) Get(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	if v, ok := r.Header[key]; ok {
		return v, true
	}
	for k, v := range r.Header {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
