// Package metrics exposes Prometheus instrumentation for tool invocations
// and sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "toolrun"

// Recorder owns a private Prometheus registry. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	// invocations counts completed invocations.
	// Labels: tool, outcome (success, failure, cancelled, skipped)
	invocations *prometheus.CounterVec

	// duration measures invocation latency.
	// Labels: tool
	duration *prometheus.HistogramVec

	// denials counts permission denials.
	// Labels: tool
	denials *prometheus.CounterVec

	activeSessions prometheus.Gauge
}

// New creates a Recorder with Go runtime and process collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "invocations_total",
			Help:      "Total tool invocations by outcome",
		}, []string{"tool", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "duration_seconds",
			Help:      "Tool invocation latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"tool"}),
		denials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "permission",
			Name:      "denials_total",
			Help:      "Total invocations rejected by the permission validator",
		}, []string{"tool"}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of active sessions",
		}),
	}
}

// RecordInvocation records one completed invocation.
func (r *Recorder) RecordInvocation(tool, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.invocations.WithLabelValues(tool, outcome).Inc()
	r.duration.WithLabelValues(tool).Observe(d.Seconds())
}

// RecordDenial records a permission denial.
func (r *Recorder) RecordDenial(tool string) {
	if r == nil {
		return
	}
	r.denials.WithLabelValues(tool).Inc()
}

// SessionOpened increments the active session gauge.
func (r *Recorder) SessionOpened() {
	if r == nil {
		return
	}
	r.activeSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (r *Recorder) SessionClosed() {
	if r == nil {
		return
	}
	r.activeSessions.Dec()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
