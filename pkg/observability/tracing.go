// Package observability provides Prometheus metrics and OpenTelemetry tracing
// for the VAU client.
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of every span this module starts.
const TracerName = "github.com/ajitpratap0/erp-vau-go"

// Span attribute keys
const (
	AttrOperation   = attribute.Key("erp.operation")
	AttrResource    = attribute.Key("erp.resource")
	AttrStatusCode  = attribute.Key("erp.status_code")
	AttrAttempt     = attribute.Key("erp.attempt")
	AttrVauRequest  = attribute.Key("erp.vau.request_id")
	AttrPseudonym   = attribute.Key("erp.vau.pseudonym_set")
	AttrServiceName = attribute.Key("erp.service")
)

// ExporterType selects the span exporter
type ExporterType string

const (
	ExporterTypeOTLPGRPC ExporterType = "otlp-grpc"
	ExporterTypeOTLPHTTP ExporterType = "otlp-http"
	ExporterTypeNoop     ExporterType = "noop"
)

// TracingConfig configures OpenTelemetry tracing
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	ExporterType ExporterType
	// Endpoint is host:port of the OTLP collector
	Endpoint string
	Headers  map[string]string
	Insecure bool

	// Exporter overrides ExporterType when set. Spans are then exported
	// synchronously, which is what tests want.
	Exporter sdktrace.SpanExporter

	// SampleRate is the ratio of traces kept, 0 selects 1.0
	SampleRate float64
	// AlwaysSample and NeverSample name operations, e.g. "certificate.fetch",
	// that bypass SampleRate
	AlwaysSample []string
	NeverSample  []string

	BatchTimeout time.Duration
	MaxBatchSize int
	MaxQueueSize int

	// SetGlobal installs the provider and a W3C trace context propagator as
	// the otel globals
	SetGlobal bool

	ResourceAttributes map[string]string
}

func (c TracingConfig) withDefaults() TracingConfig {
	if c.ServiceName == "" {
		c.ServiceName = "erp-vau-client"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "unknown"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.ExporterType == "" {
		c.ExporterType = ExporterTypeNoop
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 5 * time.Second
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = 512
	}
	if c.MaxQueueSize == 0 {
		c.MaxQueueSize = 2048
	}
	return c
}

// TracingProvider owns the SDK tracer provider of a session
type TracingProvider struct {
	serviceName string
	provider    *sdktrace.TracerProvider
	tracer      trace.Tracer

	mu     sync.Mutex
	closed bool
}

// NewTracingProvider creates the tracer provider. Nothing is exported
// before the first span ends.
func NewTracingProvider(config TracingConfig) (*TracingProvider, error) {
	config = config.withDefaults()

	options := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(newResource(config)),
		sdktrace.WithSampler(newSampler(config)),
	}
	if config.Exporter != nil {
		options = append(options, sdktrace.WithSyncer(config.Exporter))
	} else {
		exporter, err := newExporter(config)
		if err != nil {
			return nil, fmt.Errorf("create %s exporter: %w", config.ExporterType, err)
		}
		options = append(options, sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(config.BatchTimeout),
			sdktrace.WithMaxExportBatchSize(config.MaxBatchSize),
			sdktrace.WithMaxQueueSize(config.MaxQueueSize),
		))
	}

	provider := sdktrace.NewTracerProvider(options...)
	if config.SetGlobal {
		otel.SetTracerProvider(provider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	return &TracingProvider{
		serviceName: config.ServiceName,
		provider:    provider,
		tracer:      provider.Tracer(TracerName),
	}, nil
}

func newResource(config TracingConfig) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
		semconv.DeploymentEnvironment(config.Environment),
	}
	for k, v := range config.ResourceAttributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func newExporter(config TracingConfig) (sdktrace.SpanExporter, error) {
	var client otlptrace.Client
	switch config.ExporterType {
	case ExporterTypeOTLPGRPC:
		options := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(config.Endpoint),
			otlptracegrpc.WithHeaders(config.Headers),
		}
		if config.Insecure {
			options = append(options, otlptracegrpc.WithInsecure())
		}
		client = otlptracegrpc.NewClient(options...)
	case ExporterTypeOTLPHTTP:
		options := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(config.Endpoint),
			otlptracehttp.WithHeaders(config.Headers),
		}
		if config.Insecure {
			options = append(options, otlptracehttp.WithInsecure())
		}
		client = otlptracehttp.NewClient(options...)
	case ExporterTypeNoop:
		return discardExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter type %q", config.ExporterType)
	}
	// otlptrace.New only dials lazily for both clients
	return otlptrace.New(context.Background(), client)
}

func newSampler(config TracingConfig) sdktrace.Sampler {
	ratio := ratioSampler(config.SampleRate)
	if len(config.AlwaysSample) == 0 && len(config.NeverSample) == 0 {
		return ratio
	}

	decisions := make(map[string]sdktrace.SamplingDecision, len(config.AlwaysSample)+len(config.NeverSample))
	for _, op := range config.NeverSample {
		decisions[op] = sdktrace.Drop
	}
	for _, op := range config.AlwaysSample {
		decisions[op] = sdktrace.RecordAndSample
	}
	return &operationSampler{decisions: decisions, fallback: ratio, rate: config.SampleRate}
}

func ratioSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer returns the tracer spans should be started from
func (tp *TracingProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// StartOperationSpan is StartSpan on the provider's tracer, tagged with the
// service name
func (tp *TracingProvider) StartOperationSpan(ctx context.Context, operation string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, tp.tracer, operation, kind, append(attrs, AttrServiceName.String(tp.serviceName))...)
}

// Shutdown flushes pending spans. Calls after the first return nil.
func (tp *TracingProvider) Shutdown(ctx context.Context) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.closed {
		return nil
	}
	tp.closed = true
	return tp.provider.Shutdown(ctx)
}

// TracerOrGlobal returns t, or the otel global tracer when t is nil.
func TracerOrGlobal(t trace.Tracer) trace.Tracer {
	if t == nil {
		return otel.Tracer(TracerName)
	}
	return t
}

// StartSpan starts a span for operation on t.
func StartSpan(ctx context.Context, t trace.Tracer, operation string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return TracerOrGlobal(t).Start(ctx, "erp."+operation,
		trace.WithSpanKind(kind),
		trace.WithAttributes(append(attrs, AttrOperation.String(operation))...),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// operationSampler looks up the erp.operation attribute before falling back
// to the ratio sampler
type operationSampler struct {
	decisions map[string]sdktrace.SamplingDecision
	fallback  sdktrace.Sampler
	rate      float64
}

func (s *operationSampler) ShouldSample(params sdktrace.SamplingParameters) sdktrace.SamplingResult {
	for _, attr := range params.Attributes {
		if attr.Key != AttrOperation {
			continue
		}
		if decision, ok := s.decisions[attr.Value.AsString()]; ok {
			return sdktrace.SamplingResult{
				Decision:   decision,
				Tracestate: trace.SpanContextFromContext(params.ParentContext).TraceState(),
			}
		}
		break
	}
	return s.fallback.ShouldSample(params)
}

func (s *operationSampler) Description() string {
	return fmt.Sprintf("OperationSampler{rate=%.2f,overrides=%d}", s.rate, len(s.decisions))
}

type discardExporter struct{}

func (discardExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (discardExporter) Shutdown(context.Context) error                             { return nil }
