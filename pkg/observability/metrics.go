package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// MetricsConfig configures the metrics provider
type MetricsConfig struct {
	// Service identification
	ServiceName    string
	ServiceVersion string
	Environment    string

	// HTTP endpoint, only served after Start
	MetricsPath string // default: /metrics
	MetricsPort int    // default: 9090

	// Metric options
	Namespace        string    // default: erp
	Subsystem        string    // default: vau
	HistogramBuckets []float64 // latency buckets in milliseconds

	// Registerer receives the collectors; defaults to prometheus.DefaultRegisterer.
	// Gatherer backs the HTTP endpoint; defaults to prometheus.DefaultGatherer.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	// Labels to add to all metrics
	ConstLabels prometheus.Labels
}

// MetricsProvider records the client's operational metrics
type MetricsProvider interface {
	// RecordRoundTrip records one outer HTTP attempt against the tunnel host
	RecordRoundTrip(ctx context.Context, method string, statusCode int, duration time.Duration, err error)
	// RecordRetry records a retry decision of the retrying transport
	RecordRetry(ctx context.Context, operation, reason string)
	// RecordCertificateFetch records a tunnel certificate download
	RecordCertificateFetch(ctx context.Context, status string, duration time.Duration)
	// RecordVauSend records one encrypted exchange through the channel
	RecordVauSend(ctx context.Context, outcome string, duration time.Duration)
	// RecordTokenRefresh records an authentication attempt
	RecordTokenRefresh(ctx context.Context, status string)
	// RecordRequest records one orchestrated FHIR operation
	RecordRequest(ctx context.Context, command, status string, duration time.Duration)

	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// PrometheusMetricsProvider implements MetricsProvider using Prometheus
type PrometheusMetricsProvider struct {
	config MetricsConfig
	server *http.Server
	mu     sync.Mutex

	roundTripDuration   *prometheus.HistogramVec
	roundTripTotal      *prometheus.CounterVec
	retryTotal          *prometheus.CounterVec
	certificateDuration *prometheus.HistogramVec
	sendDuration        *prometheus.HistogramVec
	sendTotal           *prometheus.CounterVec
	tokenRefreshTotal   *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	requestTotal        *prometheus.CounterVec
}

// NewMetricsProvider creates a new Prometheus metrics provider
func NewMetricsProvider(config MetricsConfig) (*PrometheusMetricsProvider, error) {
	if config.Namespace == "" {
		config.Namespace = "erp"
	}
	if config.Subsystem == "" {
		config.Subsystem = "vau"
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if config.MetricsPort == 0 {
		config.MetricsPort = 9090
	}
	if config.HistogramBuckets == nil {
		config.HistogramBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}
	}
	if config.Registerer == nil {
		config.Registerer = prometheus.DefaultRegisterer
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	constLabels := prometheus.Labels{}
	for k, v := range config.ConstLabels {
		constLabels[k] = v
	}
	if config.ServiceName != "" {
		constLabels["service"] = config.ServiceName
	}
	if config.ServiceVersion != "" {
		constLabels["version"] = config.ServiceVersion
	}
	if config.Environment != "" {
		constLabels["environment"] = config.Environment
	}
	config.ConstLabels = constLabels

	provider := &PrometheusMetricsProvider{config: config}
	provider.initializeMetrics()

	if err := provider.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return provider, nil
}

func (p *PrometheusMetricsProvider) histogram(name, help string, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        name,
			Help:        help,
			Buckets:     p.config.HistogramBuckets,
			ConstLabels: p.config.ConstLabels,
		},
		labels,
	)
}

func (p *PrometheusMetricsProvider) counter(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: p.config.ConstLabels,
		},
		labels,
	)
}

func (p *PrometheusMetricsProvider) initializeMetrics() {
	p.roundTripDuration = p.histogram("round_trip_duration_milliseconds",
		"Duration of single outer HTTP attempts in milliseconds", "method", "code")
	p.roundTripTotal = p.counter("round_trip_total",
		"Total number of outer HTTP attempts", "method", "code")
	p.retryTotal = p.counter("retry_total",
		"Total number of retries after transient failures", "operation", "reason")
	p.certificateDuration = p.histogram("certificate_fetch_duration_milliseconds",
		"Duration of tunnel certificate downloads in milliseconds", "status")
	p.sendDuration = p.histogram("send_duration_milliseconds",
		"Duration of encrypted exchanges in milliseconds", "outcome")
	p.sendTotal = p.counter("send_total",
		"Total number of encrypted exchanges", "outcome")
	p.tokenRefreshTotal = p.counter("token_refresh_total",
		"Total number of authentication attempts", "status")
	p.requestDuration = p.histogram("request_duration_milliseconds",
		"Duration of FHIR operations in milliseconds", "command", "status")
	p.requestTotal = p.counter("request_total",
		"Total number of FHIR operations", "command", "status")
}

func (p *PrometheusMetricsProvider) registerMetrics() error {
	collectors := []prometheus.Collector{
		p.roundTripDuration,
		p.roundTripTotal,
		p.retryTotal,
		p.certificateDuration,
		p.sendDuration,
		p.sendTotal,
		p.tokenRefreshTotal,
		p.requestDuration,
		p.requestTotal,
	}

	for _, collector := range collectors {
		if err := p.config.Registerer.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}

	return nil
}

// RecordRoundTrip records an outer HTTP attempt. Failed attempts without a
// response are labeled with code "none".
func (p *PrometheusMetricsProvider) RecordRoundTrip(ctx context.Context, method string, statusCode int, duration time.Duration, err error) {
	code := "none"
	if err == nil && statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	p.roundTripDuration.WithLabelValues(method, code).Observe(millis(duration))
	p.roundTripTotal.WithLabelValues(method, code).Inc()
}

// RecordRetry records a retry
func (p *PrometheusMetricsProvider) RecordRetry(ctx context.Context, operation, reason string) {
	p.retryTotal.WithLabelValues(operation, reason).Inc()
}

// RecordCertificateFetch records a certificate download
func (p *PrometheusMetricsProvider) RecordCertificateFetch(ctx context.Context, status string, duration time.Duration) {
	p.certificateDuration.WithLabelValues(status).Observe(millis(duration))
}

// RecordVauSend records an encrypted exchange
func (p *PrometheusMetricsProvider) RecordVauSend(ctx context.Context, outcome string, duration time.Duration) {
	p.sendDuration.WithLabelValues(outcome).Observe(millis(duration))
	p.sendTotal.WithLabelValues(outcome).Inc()
}

// RecordTokenRefresh records an authentication attempt
func (p *PrometheusMetricsProvider) RecordTokenRefresh(ctx context.Context, status string) {
	p.tokenRefreshTotal.WithLabelValues(status).Inc()
}

// RecordRequest records an orchestrated FHIR operation
func (p *PrometheusMetricsProvider) RecordRequest(ctx context.Context, command, status string, duration time.Duration) {
	p.requestDuration.WithLabelValues(command, status).Observe(millis(duration))
	p.requestTotal.WithLabelValues(command, status).Inc()
}

// Handler returns the HTTP handler exposing the configured gatherer.
func (p *PrometheusMetricsProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.config.Gatherer, promhttp.HandlerOpts{})
}

// Start starts the metrics HTTP server
func (p *PrometheusMetricsProvider) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.server != nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(p.config.MetricsPath, p.Handler())

	p.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", p.config.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	server := p.server
	go func() {
		_ = server.ListenAndServe()
	}()

	return nil
}

// Shutdown gracefully shuts down the metrics server
func (p *PrometheusMetricsProvider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.server == nil {
		return nil
	}
	err := p.server.Shutdown(ctx)
	p.server = nil
	return err
}

// NoopMetricsProvider discards all measurements
type NoopMetricsProvider struct{}

func (NoopMetricsProvider) RecordRoundTrip(context.Context, string, int, time.Duration, error) {}
func (NoopMetricsProvider) RecordRetry(context.Context, string, string)                       {}
func (NoopMetricsProvider) RecordCertificateFetch(context.Context, string, time.Duration)     {}
func (NoopMetricsProvider) RecordVauSend(context.Context, string, time.Duration)              {}
func (NoopMetricsProvider) RecordTokenRefresh(context.Context, string)                        {}
func (NoopMetricsProvider) RecordRequest(context.Context, string, string, time.Duration)      {}
func (NoopMetricsProvider) Start(context.Context) error                                       { return nil }
func (NoopMetricsProvider) Shutdown(context.Context) error                                    { return nil }

// OrNoop returns m, or a NoopMetricsProvider when m is nil.
func OrNoop(m MetricsProvider) MetricsProvider {
	if m == nil {
		return NoopMetricsProvider{}
	}
	return m
}

// StatusOf maps an error onto the status label.
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
