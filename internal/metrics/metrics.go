// Package metrics exposes Prometheus counters for the passwordless flow.
//
// All recording methods are safe to call on a nil *Metrics so components can
// run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "passwordless"

// Request outcomes recorded by TokenRequested.
const (
	OutcomeIssued         = "issued"
	OutcomeUnknownContact = "unknown_contact"
	OutcomeVerifyFailure  = "verify_failure"
	OutcomeStoreFailure   = "store_failure"
	OutcomeDeliveryFailed = "delivery_failure"
)

type Metrics struct {
	registry *prometheus.Registry

	tokensRequested *prometheus.CounterVec
	tokensAccepted  prometheus.Counter
	tokensRejected  *prometheus.CounterVec
	logouts         prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New creates the metrics on a private registry, together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tokensRequested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_requests_total",
			Help:      "Token requests by delivery and outcome.",
		}, []string{"delivery", "outcome"}),
		tokensAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_accepted_total",
			Help:      "Tokens accepted and exchanged for a session.",
		}),
		tokensRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_rejected_total",
			Help:      "Presented tokens that were not accepted.",
		}, []string{"reason"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "Logouts processed.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.tokensRequested,
		m.tokensAccepted,
		m.tokensRejected,
		m.logouts,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) TokenRequested(delivery, outcome string) {
	if m == nil {
		return
	}
	m.tokensRequested.WithLabelValues(delivery, outcome).Inc()
}

func (m *Metrics) TokenAccepted() {
	if m == nil {
		return
	}
	m.tokensAccepted.Inc()
}

func (m *Metrics) TokenRejected(reason string) {
	if m == nil {
		return
	}
	m.tokensRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) Logout() {
	if m == nil {
		return
	}
	m.logouts.Inc()
}

func (m *Metrics) HTTPRequest(method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
