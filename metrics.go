package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "parallel_shuffle"

// Metrics counts shuffle runs by outcome and times them.
type Metrics struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the shuffle metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Shuffle runs by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed shuffle runs.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}
	m.registry.MustRegister(m.runs, m.duration)
	return m
}

// Observe records one run that started at start and ended with err.
func (m *Metrics) Observe(start time.Time, err error) {
	m.runs.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		m.duration.Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	var wf *WorkerFailure
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.As(err, &wf):
		return "worker_failure"
	default:
		return "aborted"
	}
}
