// Package metrics exposes the service's Prometheus collectors. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	apiRequests   *prometheus.CounterVec
	apiLatency    *prometheus.HistogramVec
	apiInflight   prometheus.Gauge
	intakeSets    *prometheus.CounterVec
	invoices      prometheus.Counter
	payments      *prometheus.CounterVec
	overdueMarked prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Requests currently being served.",
		}),
		intakeSets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_sets_total",
			Help: "Sample sets processed at intake by log kind and outcome.",
		}, []string{"kind", "outcome"}),
		invoices: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoices_created_total",
			Help: "Invoices issued.",
		}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_applied_total",
			Help: "Payments recorded, by whether they settled the invoice.",
		}, []string{"settled"}),
		overdueMarked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoices_overdue_marked_total",
			Help: "Invoices moved to overdue by the sweeper.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.intakeSets, m.invoices, m.payments, m.overdueMarked,
	)
	return m
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

// IntakeSet records one set; outcome is "logged" or "failed".
func (m *Metrics) IntakeSet(kind, outcome string) {
	if m == nil {
		return
	}
	m.intakeSets.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) InvoiceCreated() {
	if m == nil {
		return
	}
	m.invoices.Inc()
}

func (m *Metrics) PaymentApplied(settled bool) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(strconv.FormatBool(settled)).Inc()
}

func (m *Metrics) OverdueMarked(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.overdueMarked.Add(float64(n))
}
