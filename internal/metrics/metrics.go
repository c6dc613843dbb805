// Package metrics exposes Prometheus collectors for the polling pipeline.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "npbc_dashboard"

// Cycle outcomes.
const (
	CycleCommitted = "committed"
	CycleStale     = "stale"
	CycleFailed    = "failed"
)

// Collector groups the pipeline metrics behind a private registry.
type Collector struct {
	registry *prometheus.Registry

	attemptFailures *prometheus.CounterVec
	fetches         *prometheus.CounterVec
	fetchAttempts   *prometheus.HistogramVec
	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	datasetSize     *prometheus.GaugeVec
	lastCommit      prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		attemptFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempt_failures_total",
			Help:      "Failed fetch attempts by endpoint and failure kind (transport, status, decode).",
		}, []string{"endpoint", "reason"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Logical fetches by endpoint and outcome after retries.",
		}, []string{"endpoint", "outcome"}),
		fetchAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_attempts",
			Help:      "Attempts used per logical fetch.",
			Buckets:   []float64{1, 2, 3, 5},
		}, []string{"endpoint"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Poll cycles by outcome.",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Wall time from cycle issue to completion.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		datasetSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_records",
			Help:      "Records in each published dataset.",
		}, []string{"dataset"}),
		lastCommit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_commit_timestamp_seconds",
			Help:      "Unix time of the last committed cycle.",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.attemptFailures,
		c.fetches,
		c.fetchAttempts,
		c.cycles,
		c.cycleDuration,
		c.datasetSize,
		c.lastCommit,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// AttemptFailed records one failed fetch attempt.
func (c *Collector) AttemptFailed(endpoint, reason string) {
	c.attemptFailures.WithLabelValues(endpointLabel(endpoint), reason).Inc()
}

// FetchCompleted records a logical fetch after its retries.
func (c *Collector) FetchCompleted(endpoint string, attempts int, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "unavailable"
	}
	label := endpointLabel(endpoint)
	c.fetches.WithLabelValues(label, outcome).Inc()
	c.fetchAttempts.WithLabelValues(label).Observe(float64(attempts))
}

// CycleFinished records a cycle outcome and its duration.
func (c *Collector) CycleFinished(outcome string, elapsed time.Duration) {
	c.cycles.WithLabelValues(outcome).Inc()
	c.cycleDuration.Observe(elapsed.Seconds())
	if outcome == CycleCommitted {
		c.lastCommit.SetToCurrentTime()
	}
}

// DatasetSize records the size of a published dataset.
func (c *Collector) DatasetSize(dataset string, n int) {
	c.datasetSize.WithLabelValues(dataset).Set(float64(n))
}

// endpointLabel drops the query string so the boundary timestamp does not
// become a label value.
func endpointLabel(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	return strings.TrimLeft(endpoint, "/")
}
