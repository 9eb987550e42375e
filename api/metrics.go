package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every prometheus collector the api exports
type Metrics struct {
	registry  *prometheus.Registry
	namespace string

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	ComplaintTransitions *prometheus.CounterVec
	MediaUploads         *prometheus.CounterVec

	WSConnectionsActive prometheus.Gauge
	WSSnapshotsTotal    prometheus.Counter
}

// NewMetrics registers the collectors on a fresh registry
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry:  reg,
		namespace: namespace,
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		ComplaintTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "complaint_transitions_total",
				Help:      "Complaint lifecycle actions by outcome",
			},
			[]string{"action", "outcome"},
		),
		MediaUploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "media_uploads_total",
				Help:      "Image uploads by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		WSConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_connections_active",
				Help:      "Active dashboard WebSocket connections",
			},
		),
		WSSnapshotsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_snapshots_total",
				Help:      "Dashboard snapshots pushed over WebSocket",
			},
		),
	}
}

// ObserveSessions exports count as the number of signed in sessions
func (m *Metrics) ObserveSessions(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      "sessions_active",
			Help:      "Unexpired sessions signed in on this instance",
		},
		func() float64 { return float64(count()) },
	))
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordTransition counts a lifecycle action; outcome is "ok" or an error class
func (m *Metrics) RecordTransition(action, outcome string) {
	m.ComplaintTransitions.WithLabelValues(action, outcome).Inc()
}

// RecordUpload counts an image upload
func (m *Metrics) RecordUpload(stage string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.MediaUploads.WithLabelValues(stage, outcome).Inc()
}
