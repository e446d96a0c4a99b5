package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
)

var _ ports.EventSink = (*Metrics)(nil)

// Metrics exposes coordinator events as Prometheus series.
type Metrics struct {
	registry *prometheus.Registry

	propagations       *prometheus.CounterVec
	propagationLatency *prometheus.HistogramVec
	cacheLookups       *prometheus.CounterVec
	discrepancies      *prometheus.CounterVec
	alerts             *prometheus.CounterVec
	reconcilePasses    prometheus.Counter
	reconcileScanned   prometheus.Counter
	reconcileDuration  prometheus.Histogram
	spanDuration       *prometheus.HistogramVec
}

// NewMetrics registers the coordinator series on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		propagations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_propagations_total",
			Help: "Propagation task outcomes by derived role",
		}, []string{"role", "outcome"}),
		propagationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "concord_propagation_duration_seconds",
			Help:    "Time from task pickup to a terminal outcome",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"role"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_cache_lookups_total",
			Help: "Read path cache lookups by result",
		}, []string{"result"}),
		discrepancies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_discrepancies_total",
			Help: "Discrepancies detected and resolved by role",
		}, []string{"role", "outcome"}),
		alerts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_alerts_total",
			Help: "Discrepancies that exhausted auto-resolution",
		}, []string{"role"}),
		reconcilePasses: factory.NewCounter(prometheus.CounterOpts{
			Name: "concord_reconcile_passes_total",
			Help: "Completed reconciliation passes",
		}),
		reconcileScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "concord_reconcile_scanned_total",
			Help: "Canonical entities compared by reconciliation",
		}),
		reconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "concord_reconcile_duration_seconds",
			Help:    "Duration of reconciliation passes",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		spanDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "concord_span_duration_seconds",
			Help:    "Duration of traced operations",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"name", "status"}),
	}
}

// Emit records ev.
func (m *Metrics) Emit(_ context.Context, ev domain.Event) {
	switch ev.Kind {
	case domain.EventPropagation:
		m.propagations.WithLabelValues(string(ev.Role), string(ev.Outcome)).Inc()
		if ev.Outcome == domain.OutcomeApplied || ev.Outcome == domain.OutcomeStale || ev.Outcome == domain.OutcomeFailed {
			m.propagationLatency.WithLabelValues(string(ev.Role)).Observe(ev.Latency.Seconds())
		}
	case domain.EventCacheHit:
		m.cacheLookups.WithLabelValues("hit").Inc()
	case domain.EventCacheMiss:
		m.cacheLookups.WithLabelValues("miss").Inc()
	case domain.EventCacheBypass:
		m.cacheLookups.WithLabelValues("bypass").Inc()
	case domain.EventDiscrepancy:
		m.discrepancies.WithLabelValues(string(ev.Role), string(ev.Outcome)).Inc()
	case domain.EventAlert:
		m.alerts.WithLabelValues(string(ev.Role)).Inc()
	case domain.EventReconcilePass:
		m.reconcilePasses.Inc()
		m.reconcileScanned.Add(float64(ev.Count))
		m.reconcileDuration.Observe(ev.Latency.Seconds())
	}
}

// Registry returns the registry holding the series.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the series in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
