package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct is passed
// to the components that record metrics. A nil *Metrics is valid and records
// nothing, so wiring metrics stays optional.
type Metrics struct {
	// Rendering
	rendersTotal   *prometheus.CounterVec
	renderDuration prometheus.Histogram

	// Template loading
	templateFetchTotal *prometheus.CounterVec

	// Delivery pipeline
	deliveryAttemptsTotal *prometheus.CounterVec
	deliveryDuration      *prometheus.HistogramVec

	// HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Archive and events
	submissionsArchivedTotal prometheus.Counter
	eventsPublishedTotal     *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		rendersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealdesk_renders_total",
				Help: "Total number of document renders by status",
			},
			[]string{"status"},
		),
		renderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dealdesk_render_duration_seconds",
				Help:    "Duration of document rendering in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
		),
		templateFetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealdesk_template_fetch_total",
				Help: "Total number of template fetch attempts by source and status",
			},
			[]string{"source", "status"},
		),
		deliveryAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealdesk_delivery_attempts_total",
				Help: "Total number of delivery destination attempts by destination and status",
			},
			[]string{"destination", "status"},
		),
		deliveryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dealdesk_delivery_duration_seconds",
				Help:    "Duration of delivery destination attempts in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"destination"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealdesk_http_requests_total",
				Help: "Total number of HTTP requests by method, path and status code",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dealdesk_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "path"},
		),
		submissionsArchivedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dealdesk_submissions_archived_total",
				Help: "Total number of submissions written to the archive",
			},
		),
		eventsPublishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealdesk_delivery_events_published_total",
				Help: "Total number of delivery events published by status",
			},
			[]string{"status"},
		),
	}
}

// ObserveRender records one render attempt.
func (m *Metrics) ObserveRender(success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.rendersTotal.WithLabelValues(statusLabel(success)).Inc()
	m.renderDuration.Observe(d.Seconds())
}

// ObserveTemplateFetch records one template fetch attempt.
// Source is "remote" or "local".
func (m *Metrics) ObserveTemplateFetch(source string, success bool) {
	if m == nil {
		return
	}
	m.templateFetchTotal.WithLabelValues(source, statusLabel(success)).Inc()
}

// ObserveDelivery records one delivery destination attempt.
func (m *Metrics) ObserveDelivery(destination string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.deliveryAttemptsTotal.WithLabelValues(destination, statusLabel(success)).Inc()
	m.deliveryDuration.WithLabelValues(destination).Observe(d.Seconds())
}

// ObserveHTTPRequest records one handled HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, path string, statusCode int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// IncSubmissionArchived records one archived submission.
func (m *Metrics) IncSubmissionArchived() {
	if m == nil {
		return
	}
	m.submissionsArchivedTotal.Inc()
}

// IncEventPublished records one delivery event publish attempt.
func (m *Metrics) IncEventPublished(success bool) {
	if m == nil {
		return
	}
	m.eventsPublishedTotal.WithLabelValues(statusLabel(success)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
