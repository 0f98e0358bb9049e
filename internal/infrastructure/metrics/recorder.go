// Package metrics records provisioning outcomes in Prometheus format so a
// run's results can be picked up by the node exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nickalie/wingship/internal/core/provision"
)

const metricsNamespace = "wingship"

const (
	resultSucceeded = "succeeded"
	resultFailed    = "failed"
)

// Recorder collects metrics for one deployment run in its own registry.
type Recorder struct {
	registry *prometheus.Registry

	outcomes *prometheus.CounterVec
	duration prometheus.Histogram
	lastRun  prometheus.Gauge
}

// NewRecorder returns a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "provision_outcomes_total",
				Help:      "Provisioned hosts by result and the stage they finished in.",
			}, []string{"result", "stage"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "provision_duration_seconds",
				Help:      "Time taken to provision one host.",
				Buckets:   []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
			},
		),
		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last deployment run finished.",
			},
		),
	}
	r.registry.MustRegister(r.outcomes, r.duration, r.lastRun)
	return r
}

// Observe records the outcome of one host.
func (r *Recorder) Observe(outcome *provision.Outcome) {
	if outcome == nil {
		return
	}

	result := resultFailed
	if outcome.Succeeded() {
		result = resultSucceeded
	}
	r.outcomes.WithLabelValues(result, outcome.Stage.String()).Inc()

	if !outcome.Started.IsZero() {
		r.duration.Observe(outcome.Duration().Seconds())
	}
}

// Finish marks the run as completed at t.
func (r *Recorder) Finish(t time.Time) {
	r.lastRun.Set(float64(t.Unix()))
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
