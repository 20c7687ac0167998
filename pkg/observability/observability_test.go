package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTestMetrics(t *testing.T) (*PrometheusMetricsProvider, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	provider, err := NewMetricsProvider(MetricsConfig{
		ServiceName: "test",
		Registerer:  registry,
		Gatherer:    registry,
	})
	require.NoError(t, err)
	return provider, registry
}

func TestMetricsProviderRecords(t *testing.T) {
	provider, _ := newTestMetrics(t)
	ctx := context.Background()

	provider.RecordRoundTrip(ctx, http.MethodPost, 200, 12*time.Millisecond, nil)
	provider.RecordRoundTrip(ctx, http.MethodPost, 0, time.Millisecond, errors.New("dial tcp: refused"))
	provider.RecordRoundTrip(ctx, http.MethodPost, 0, time.Millisecond, errors.New("dial tcp: refused"))
	provider.RecordRetry(ctx, "send", "ConnectionFailed")
	provider.RecordVauSend(ctx, "decrypted", 30*time.Millisecond)
	provider.RecordTokenRefresh(ctx, StatusSuccess)
	provider.RecordRequest(ctx, "TaskCreate", StatusSuccess, 40*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(provider.roundTripTotal.WithLabelValues("POST", "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(provider.roundTripTotal.WithLabelValues("POST", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(provider.retryTotal.WithLabelValues("send", "ConnectionFailed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(provider.sendTotal.WithLabelValues("decrypted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(provider.tokenRefreshTotal.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(provider.requestTotal.WithLabelValues("TaskCreate", StatusSuccess)))
}

func TestMetricsProviderRegistersTwice(t *testing.T) {
	registry := prometheus.NewRegistry()
	config := MetricsConfig{Registerer: registry, Gatherer: registry}

	_, err := NewMetricsProvider(config)
	require.NoError(t, err)

	// the second provider finds its collectors already registered
	_, err = NewMetricsProvider(config)
	require.NoError(t, err)
}

func TestMetricsHandler(t *testing.T) {
	provider, _ := newTestMetrics(t)
	provider.RecordTokenRefresh(context.Background(), StatusError)

	rec := httptest.NewRecorder()
	provider.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `erp_vau_token_refresh_total{service="test",status="error"} 1`), body)
}

func TestNoopMetricsProvider(t *testing.T) {
	m := OrNoop(nil)
	m.RecordRequest(context.Background(), "x", StatusSuccess, time.Second)
	assert.NoError(t, m.Start(context.Background()))
	assert.NoError(t, m.Shutdown(context.Background()))

	assert.Equal(t, StatusError, StatusOf(errors.New("x")))
	assert.Equal(t, StatusSuccess, StatusOf(nil))
}

func TestTracingProviderExportsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider, err := NewTracingProvider(TracingConfig{
		ServiceName: "test",
		Exporter:    exporter,
	})
	require.NoError(t, err)
	defer provider.Shutdown(context.Background())

	_, span := provider.StartOperationSpan(context.Background(), "vau.send", trace.SpanKindClient,
		AttrResource.String("Task"))
	EndSpan(span, errors.New("gateway down"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "erp.vau.send", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, AttrOperation.String("vau.send"))
	assert.Contains(t, spans[0].Attributes, AttrResource.String("Task"))
	assert.Contains(t, spans[0].Attributes, attribute.String("erp.service", "test"))
}

func TestOperationSampler(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider, err := NewTracingProvider(TracingConfig{
		Exporter:     exporter,
		SampleRate:   1.0,
		NeverSample:  []string{"certificate.fetch"},
		AlwaysSample: []string{"vau.send"},
	})
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), provider.Tracer(), "certificate.fetch", trace.SpanKindClient)
	EndSpan(span, nil)
	_, span = StartSpan(context.Background(), provider.Tracer(), "vau.send", trace.SpanKindClient)
	EndSpan(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "erp.vau.send", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
}

func TestUnsupportedExporter(t *testing.T) {
	_, err := NewTracingProvider(TracingConfig{ExporterType: "jaeger"})
	assert.Error(t, err)
}

func TestSetGlobalRoutesNilTracer(t *testing.T) {
	previous := otel.GetTracerProvider()
	defer otel.SetTracerProvider(previous)

	exporter := tracetest.NewInMemoryExporter()
	provider, err := NewTracingProvider(TracingConfig{Exporter: exporter, SetGlobal: true})
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), nil, "client.request", trace.SpanKindInternal)
	EndSpan(span, nil)

	require.Len(t, exporter.GetSpans(), 1)
	assert.NoError(t, provider.Shutdown(context.Background()))
	assert.NoError(t, provider.Shutdown(context.Background()))
}
