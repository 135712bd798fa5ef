// Package metrics exposes Prometheus instrumentation for the answer
// pipeline. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lawrag"

// Metrics holds the pipeline collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	answersTotal         *prometheus.CounterVec
	stageDuration        *prometheus.HistogramVec
	collaboratorCalls    *prometheus.CounterVec
	collaboratorDuration *prometheus.HistogramVec
	qualityTotal         *prometheus.HistogramVec
	degradationsTotal    *prometheus.CounterVec
}

// New creates and registers the collectors, plus Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		answersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "answers_total",
				Help:      "Answered queries by branch and outcome",
			},
			[]string{"path", "outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Workflow stage duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		collaboratorCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collaborator_calls_total",
				Help:      "External collaborator calls by outcome",
			},
			[]string{"collaborator", "outcome"},
		),
		collaboratorDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "collaborator_duration_seconds",
				Help:      "External collaborator call duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"collaborator"},
		),
		qualityTotal: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "quality_total",
				Help:      "Quality gate totals out of 40",
				Buckets:   []float64{8, 16, 20, 24, 28, 32, 36, 40},
			},
			[]string{"evaluation"},
		),
		degradationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "degradations_total",
				Help:      "Degraded pipeline steps by kind",
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		m.answersTotal,
		m.stageDuration,
		m.collaboratorCalls,
		m.collaboratorDuration,
		m.qualityTotal,
		m.degradationsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveAnswer counts a finished query. path is "direct" or "fallback".
func (m *Metrics) ObserveAnswer(path, outcome string) {
	if m == nil {
		return
	}
	m.answersTotal.WithLabelValues(path, outcome).Inc()
}

// ObserveStage records how long a workflow stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveCollaborator records one guarded call. Its signature matches
// resilience.Observer.
func (m *Metrics) ObserveCollaborator(collaborator, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.collaboratorCalls.WithLabelValues(collaborator, outcome).Inc()
	m.collaboratorDuration.WithLabelValues(collaborator).Observe(d.Seconds())
}

// ObserveQuality records a gate total. evaluation is "primary" or "secondary".
func (m *Metrics) ObserveQuality(evaluation string, total float64) {
	if m == nil {
		return
	}
	m.qualityTotal.WithLabelValues(evaluation).Observe(total)
}

// ObserveDegradation counts a degraded step.
func (m *Metrics) ObserveDegradation(kind string) {
	if m == nil {
		return
	}
	m.degradationsTotal.WithLabelValues(kind).Inc()
}
