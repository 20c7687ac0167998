package transport

import "context"

// Middleware wraps a transport to add behaviour such as retries or observability.
type Middleware interface {
	// Wrap wraps the given transport with middleware functionality
	Wrap(transport Transport) Transport
}

// MiddlewareFunc is an adapter to allow the use of ordinary functions as middleware
type MiddlewareFunc func(Transport) Transport

// Wrap implements the Middleware interface
func (f MiddlewareFunc) Wrap(t Transport) Transport {
	return f(t)
}

// ChainMiddleware chains multiple middleware together
func ChainMiddleware(middleware ...Middleware) Middleware {
	return MiddlewareFunc(func(transport Transport) Transport {
		// Apply middleware in reverse order so the first middleware is the outermost
		for i := len(middleware) - 1; i >= 0; i-- {
			transport = middleware[i].Wrap(transport)
		}
		return transport
	})
}

// middlewareTransport holds the wrapped transport
type middlewareTransport struct {
	next Transport
}

// RoundTrip delegates to the wrapped transport
func (m *middlewareTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	return m.next.RoundTrip(ctx, req)
}
