package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Admission outcomes recorded by Metrics.ObserveAdmission.
const (
	OutcomeAccepted    = "accepted"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
	OutcomeLockTimeout = "lock_timeout"
	OutcomeConflict    = "conflict"
	OutcomeError       = "error"
)

// Metrics holds the service's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	admissions *prometheus.CounterVec
	admitTime  *prometheus.HistogramVec
	lifecycle  *prometheus.CounterVec
	requests   *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

// NewMetrics registers every collector under namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "campsite"
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Booking admission decisions by outcome.",
		}, []string{"outcome"}),
		admitTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "admission_duration_seconds",
			Help:      "Time spent in admission, including waiting for the lock.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		lifecycle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_events_total",
			Help:      "Successful reservation lifecycle transitions.",
		}, []string{"event"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests processed.",
		}, []string{"route", "method", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	m.registry.MustRegister(m.admissions, m.admitTime, m.lifecycle, m.requests, m.durations)
	return m
}

// ObserveAdmission records one admission decision.
func (m *Metrics) ObserveAdmission(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(outcome).Inc()
	m.admitTime.WithLabelValues(outcome).Observe(took.Seconds())
}

// ReservationEvent counts a created, updated or cancelled reservation.
func (m *Metrics) ReservationEvent(event string) {
	if m == nil {
		return
	}
	m.lifecycle.WithLabelValues(event).Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.durations.WithLabelValues(route, method).Observe(took.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
