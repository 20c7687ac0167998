// Package transport carries raw byte exchanges to the VAU host.
//
// The base Transport is HTTPTransport, a thin net/http client that sends one
// request per call and classifies dial failures. Behaviour is layered on top
// with middleware:
//
//   - RetryMiddleware repeats a call after transient connect failures only
//     (connect timeout, connect I/O). Every other failure is returned on the
//     attempt it happened, wrapped with the attempt number.
//   - ObservabilityMiddleware records metrics, a span and a log line per attempt.
//
// # Usage
//
//	config := transport.DefaultConfig()
//	config.Retry.MaxRetries = 5
//	t, err := transport.NewTransport(config)
//
//	resp, err := t.RoundTrip(ctx, &transport.Request{
//		Method: http.MethodGet,
//		URL:    "https://erp.example/VAUCertificate",
//	})
//
// Middleware composes with ChainMiddleware; the first middleware given is the
// outermost:
//
//	chain := transport.ChainMiddleware(
//		transport.NewRetryMiddleware(config.Retry, logger, metrics),
//		transport.NewObservabilityMiddleware(config.Observability, logger, metrics, tracer),
//	)
//	t := chain.Wrap(transport.NewHTTPTransport(config.Connection))
//
// With that order the observability layer sees every attempt and the retry layer
// sees the outcome of each.
//
// Requests carry their body as a byte slice so each attempt rebuilds a fresh
// *http.Request; repeating a call has no side effects on the caller's data.
package transport
