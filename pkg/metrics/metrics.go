package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mikeboe/research-agent/pkg/research"
)

// Metrics holds the Prometheus collectors for research runs.
type Metrics struct {
	registry   *prometheus.Registry
	runs       *prometheus.CounterVec
	duration   prometheus.Histogram
	iterations prometheus.Counter
	stepErrors *prometheus.CounterVec
	sources    prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "research_runs_total",
			Help: "Research runs by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "research_run_duration_seconds",
			Help:    "Wall time of complete research runs.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "research_iterations_total",
			Help: "Search, extract, analyze cycles started.",
		}),
		stepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "research_step_errors_total",
			Help: "Recovered per-iteration failures by step.",
		}, []string{"step"}),
		sources: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "research_sources_found_total",
			Help: "Search results collected across all runs.",
		}),
	}
	m.registry.MustRegister(m.runs, m.duration, m.iterations, m.stepErrors, m.sources)
	return m
}

// Report implements research.ProgressReporter.
func (m *Metrics) Report(p research.Progress) {
	switch p.Step {
	case research.StepSearching:
		m.iterations.Inc()
	case research.StepExtracting:
		m.sources.Add(float64(p.SourcesFound))
	case research.StepError:
		stage := string(p.Stage)
		if stage == "" {
			stage = "unknown"
		}
		m.stepErrors.WithLabelValues(stage).Inc()
	}
}

// ObserveRun records the outcome of a finished run.
func (m *Metrics) ObserveRun(outcome string, elapsed time.Duration) {
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
