// Package metrics exposes Prometheus metrics for the fallback storage façade.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ruteri/fallback-storage/storage"
)

// DispatchMetrics records façade dispatch cycles. It implements storage.DispatchRecorder.
type DispatchMetrics struct {
	dispatches        *prometheus.CounterVec
	duration          *prometheus.HistogramVec
	backendFailures   *prometheus.CounterVec
	negotiationRounds prometheus.Histogram
}

// NewDispatchMetrics creates the dispatch metrics and registers them on reg.
func NewDispatchMetrics(namespace string, reg prometheus.Registerer) (*DispatchMetrics, error) {
	m := &DispatchMetrics{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Façade operations by outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching an operation across backends.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		backendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_failures_total",
			Help:      "Backend errors recorded during dispatch.",
		}, []string{"op", "backend"}),
		negotiationRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "name_negotiation_rounds",
			Help:      "Rounds taken to agree on an available name.",
			Buckets:   []float64{1, 2, 3, 5, 10, 25, 50, 100},
		}),
	}

	for _, c := range []prometheus.Collector{m.dispatches, m.duration, m.backendFailures, m.negotiationRounds} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *DispatchMetrics) RecordDispatch(op storage.Operation, outcome string, duration time.Duration) {
	m.dispatches.WithLabelValues(string(op), outcome).Inc()
	m.duration.WithLabelValues(string(op)).Observe(duration.Seconds())
}

func (m *DispatchMetrics) RecordBackendFailure(op storage.Operation, backend string) {
	m.backendFailures.WithLabelValues(string(op), backend).Inc()
}

func (m *DispatchMetrics) RecordNegotiation(rounds int) {
	m.negotiationRounds.Observe(float64(rounds))
}

// MetricsServer serves a Prometheus registry over HTTP.
type MetricsServer struct {
	registry *prometheus.Registry
	dispatch *DispatchMetrics
	srv      *http.Server
}

// New creates a metrics server on addr with Go runtime, process and
// dispatch metrics registered under namespace.
func New(namespace, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}

	dispatch, err := NewDispatchMetrics(namespace, registry)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &MetricsServer{
		registry: registry,
		dispatch: dispatch,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Recorder returns the dispatch metrics to hand to the façade.
func (m *MetricsServer) Recorder() *DispatchMetrics {
	return m.dispatch
}

// Handler returns the /metrics handler.
func (m *MetricsServer) Handler() http.Handler {
	return m.srv.Handler
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
