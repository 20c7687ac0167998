package transport

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/erp-vau-go/pkg/logging"
	"github.com/ajitpratap0/erp-vau-go/pkg/observability"
)

// ObservabilityMiddleware adds metrics, logging, and tracing to every round trip
type ObservabilityMiddleware struct {
	config  ObservabilityConfig
	logger  logging.Logger
	metrics observability.MetricsProvider
	tracer  trace.Tracer
}

// NewObservabilityMiddleware creates a new observability middleware. A nil
// tracer selects the otel global tracer.
func NewObservabilityMiddleware(config ObservabilityConfig, logger logging.Logger, metrics observability.MetricsProvider, tracer trace.Tracer) *ObservabilityMiddleware {
	return &ObservabilityMiddleware{
		config:  config,
		logger:  logging.OrNop(logger).WithFields(logging.String("component", "HTTPTransport")),
		metrics: observability.OrNoop(metrics),
		tracer:  observability.TracerOrGlobal(tracer),
	}
}

// Wrap implements the Middleware interface
func (om *ObservabilityMiddleware) Wrap(transport Transport) Transport {
	return &observabilityTransport{
		middlewareTransport: middlewareTransport{next: transport},
		middleware:          om,
	}
}

type observabilityTransport struct {
	middlewareTransport
	middleware *ObservabilityMiddleware
}

// RoundTrip wraps the underlying RoundTrip with observability
func (ot *observabilityTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	om := ot.middleware
	operation := operationName(req)

	var span trace.Span
	if om.config.EnableTracing {
		ctx, span = observability.StartSpan(ctx, om.tracer, "http."+operation, trace.SpanKindClient,
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL),
			attribute.Int("http.request_content_length", len(req.Body)),
		)
	}

	start := time.Now()
	resp, err := ot.middlewareTransport.RoundTrip(ctx, req)
	duration := time.Since(start)

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}

	if span != nil {
		if statusCode > 0 {
			span.SetAttributes(observability.AttrStatusCode.Int(statusCode))
		}
		observability.EndSpan(span, err)
	}

	if om.config.EnableMetrics {
		om.metrics.RecordRoundTrip(ctx, req.Method, statusCode, duration, err)
	}

	if om.config.EnableLogging {
		logger := om.logger.WithContext(ctx).WithFields(logging.String("operation", operation))
		if err != nil {
			logger.WithError(err).Warn("Round trip failed",
				logging.String("method", req.Method),
				logging.String("url", req.URL),
				logging.Duration("duration", duration),
			)
		} else {
			logger.Debug("Round trip completed",
				logging.String("method", req.Method),
				logging.String("url", req.URL),
				logging.Int("status", statusCode),
				logging.Int("response_size", len(resp.Body)),
				logging.Duration("duration", duration),
			)
		}
	}

	return resp, err
}
