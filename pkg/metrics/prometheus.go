package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Audit outcomes used as label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Manager owns all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	auditBuckets     []float64
	enabled          bool
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Audit metrics
	audits              *prometheus.CounterVec
	auditDuration       *prometheus.HistogramVec
	energyKWh           *prometheus.CounterVec
	carbonKg            *prometheus.CounterVec
	meterFallbacks      *prometheus.CounterVec
	artifactsClassified *prometheus.CounterVec
	uploadsRejected     *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ecoaudit",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		auditBuckets:     prometheus.ExponentialBuckets(0.05, 2, 14),
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one block per collector
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.audits = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "audits_total",
		Help:        "Total number of audits by kind and outcome",
		ConstLabels: labels,
	}, []string{"kind", "outcome"})

	m.auditDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "audit_duration_seconds",
		Help:        "Wall time of complete audits in seconds",
		Buckets:     m.auditBuckets,
		ConstLabels: labels,
	}, []string{"kind"})

	m.energyKWh = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "energy_kwh_total",
		Help:        "Energy attributed to audited workloads in kWh",
		ConstLabels: labels,
	}, []string{"kind"})

	m.carbonKg = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "carbon_kg_total",
		Help:        "Carbon attributed to audited workloads in kg CO2e",
		ConstLabels: labels,
	}, []string{"kind"})

	m.meterFallbacks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "meter_fallback_total",
		Help:        "Epochs whose energy did not come from the meter, by source used",
		ConstLabels: labels,
	}, []string{"source"})

	m.artifactsClassified = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "artifacts_classified_total",
		Help:        "Uploaded artifacts by resolved kind",
		ConstLabels: labels,
	}, []string{"kind"})

	m.uploadsRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "uploads_rejected_total",
		Help:        "Uploads rejected before auditing, by reason",
		ConstLabels: labels,
	}, []string{"reason"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_endpoint_total",
		Help:        "Errors by endpoint, method and error type",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "error_type"})
}

// RecordAudit counts a finished audit and, on success, its duration.
func (m *Manager) RecordAudit(kind, outcome string, seconds float64) {
	if !m.enabled {
		return
	}
	m.audits.WithLabelValues(kind, outcome).Inc()
	if outcome == OutcomeSuccess {
		m.auditDuration.WithLabelValues(kind).Observe(seconds)
	}
}

// RecordFootprint adds an audit's energy and carbon totals.
func (m *Manager) RecordFootprint(kind string, kwh, kg float64) {
	if !m.enabled || kwh < 0 || kg < 0 {
		return
	}
	m.energyKWh.WithLabelValues(kind).Add(kwh)
	m.carbonKg.WithLabelValues(kind).Add(kg)
}

// RecordMeterFallback counts an epoch resolved from source instead of the meter.
func (m *Manager) RecordMeterFallback(source string) {
	if !m.enabled {
		return
	}
	m.meterFallbacks.WithLabelValues(source).Inc()
}

// RecordClassification counts a classified artifact.
func (m *Manager) RecordClassification(kind string) {
	if !m.enabled {
		return
	}
	m.artifactsClassified.WithLabelValues(kind).Inc()
}

// RecordUploadRejected counts an upload refused before auditing.
func (m *Manager) RecordUploadRejected(reason string) {
	if !m.enabled {
		return
	}
	m.uploadsRejected.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest counts a request.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes request duration in milliseconds.
func (m *Manager) RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if !m.enabled {
		return
	}
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint counts an error response.
func (m *Manager) RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !m.enabled {
		return
	}
	m.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordAudit records an audit on the global manager.
func RecordAudit(kind, outcome string, seconds float64) {
	globalManager.RecordAudit(kind, outcome, seconds)
}

// RecordFootprint records energy and carbon on the global manager.
func RecordFootprint(kind string, kwh, kg float64) {
	globalManager.RecordFootprint(kind, kwh, kg)
}

// RecordMeterFallback records a meter fallback on the global manager.
func RecordMeterFallback(source string) {
	globalManager.RecordMeterFallback(source)
}

// RecordClassification records a classification on the global manager.
func RecordClassification(kind string) {
	globalManager.RecordClassification(kind)
}

// RecordUploadRejected records a rejected upload on the global manager.
func RecordUploadRejected(reason string) {
	globalManager.RecordUploadRejected(reason)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode)
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.RecordHTTPRequestDuration(endpoint, method, statusCode, duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.RecordErrorByEndpoint(endpoint, method, errorType)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
