// Package metrics exposes review pipeline counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/renderinc/review-queue/internal/record"
	"github.com/renderinc/review-queue/internal/review"
)

const namespace = "review_queue"

// Collectors implements review.Observer.
type Collectors struct {
	registry          *prometheus.Registry
	decisions         *prometheus.CounterVec
	normalizeFailures *prometheus.CounterVec
	sources           *prometheus.GaugeVec
	derived           prometheus.Gauge
}

// New registers the review collectors on a fresh registry.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	c := &Collectors{registry: reg}

	c.decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decisions_total",
		Help:      "Decide calls that succeeded, by verdict and whether they replayed an earlier decision",
	}, []string{"verdict", "replay"})
	c.normalizeFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "normalize_failures_total",
		Help:      "Accept attempts rejected by normalization, by missing field",
	}, []string{"field"})
	c.sources = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sources",
		Help:      "Source records by decision state as of the last stats request",
	}, []string{"state"})
	c.derived = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "derived_records",
		Help:      "Derived knowledge records as of the last stats request",
	})

	reg.MustRegister(
		c.decisions,
		c.normalizeFailures,
		c.sources,
		c.derived,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collectors) Decided(verdict record.Verdict, alreadyDecided bool) {
	c.decisions.WithLabelValues(string(verdict), strconv.FormatBool(alreadyDecided)).Inc()
}

func (c *Collectors) NormalizeFailed(field string) {
	if field == "" {
		field = "unknown"
	}
	c.normalizeFailures.WithLabelValues(field).Inc()
}

func (c *Collectors) StatsComputed(s *review.Snapshot) {
	c.sources.WithLabelValues("undecided").Set(float64(s.Undecided))
	c.sources.WithLabelValues("accepted").Set(float64(s.Accepted))
	c.sources.WithLabelValues("rejected").Set(float64(s.Rejected))
	c.derived.Set(float64(s.Derived))
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

var _ review.Observer = (*Collectors)(nil)
