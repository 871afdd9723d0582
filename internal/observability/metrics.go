// Package observability holds the Prometheus collectors, structured logger and
// HTTP middleware shared by the gridboard server.
package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gridboard/pkg/dashboard"
)

const namespace = "gridboard"

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	widgets     prometheus.Gauge
	layoutItems prometheus.Gauge
	exports     *prometheus.CounterVec
}

// NewMetrics registers every gridboard collector plus the Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		widgets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "widgets",
			Help:      "Widget configurations currently stored.",
		}),
		layoutItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "layout_items",
			Help:      "Layout items currently stored.",
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Finished dashboard exports by status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		m.requests, m.latency, m.widgets, m.layoutItems, m.exports,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveState sets the widget and layout gauges from s.
func (m *Metrics) ObserveState(s dashboard.State) {
	m.widgets.Set(float64(len(s.Widgets)))
	m.layoutItems.Set(float64(len(s.Layout)))
}

// ExportFinished counts an export that reached a terminal status.
func (m *Metrics) ExportFinished(status string) {
	m.exports.WithLabelValues(status).Inc()
}

func (m *Metrics) observeRequest(route, method string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.latency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObservedStore keeps the state gauges current as mutations succeed.
type ObservedStore struct {
	dashboard.Store
	metrics *Metrics
}

// ObserveStore wraps store; reads pass straight through.
func ObserveStore(store dashboard.Store, m *Metrics) *ObservedStore {
	return &ObservedStore{Store: store, metrics: m}
}

// Sync sets the gauges from the wrapped store's current state.
func (s *ObservedStore) Sync(ctx context.Context) error {
	state, err := s.Store.Read(ctx)
	if err != nil {
		return err
	}
	s.metrics.ObserveState(state)
	return nil
}

func (s *ObservedStore) Replace(ctx context.Context, r dashboard.Replacement) (dashboard.State, error) {
	state, err := s.Store.Replace(ctx, r)
	if err == nil {
		s.metrics.ObserveState(state)
	}
	return state, err
}

func (s *ObservedStore) DeleteWidget(ctx context.Context, id string) (dashboard.State, error) {
	state, err := s.Store.DeleteWidget(ctx, id)
	if err == nil {
		s.metrics.ObserveState(state)
	}
	return state, err
}
