// Package prom exports ftsync metrics to Prometheus.
//
//	c := prom.NewCollector(prometheus.DefaultRegisterer)
//	s, _ := ftsync.New(db, ftsync.WithMetricsCollector(c))
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/ftsync"
)

// Namespace prefixes every metric name.
const Namespace = "ftsync"

// Collector implements ftsync.MetricsCollector with per-table Prometheus
// metrics.
type Collector struct {
	latency   *prometheus.HistogramVec
	docs      *prometheus.CounterVec
	hits      *prometheus.HistogramVec
	pending   *prometheus.GaugeVec
	backfills *prometheus.CounterVec
}

var _ ftsync.MetricsCollector = (*Collector)(nil)

// NewCollector creates the metrics and registers them with reg. It panics
// if registration fails, like prometheus.MustRegister.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of flush, search and backfill operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table", "op", "status"}),
		docs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "documents_written_total",
			Help:      "Documents upserted or deleted by flushes and backfills.",
		}, []string{"table", "op"}),
		hits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "search_hits",
			Help:      "Number of hits per search.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"table"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "pending_batches",
			Help:      "Committed transaction batches not yet applied to the index.",
		}, []string{"table"}),
		backfills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "backfills_total",
			Help:      "Index rebuilds from the table rows.",
		}, []string{"table", "status"}),
	}
	reg.MustRegister(c.latency, c.docs, c.hits, c.pending, c.backfills)
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordFlush implements ftsync.MetricsCollector.
func (c *Collector) RecordFlush(table string, docs int, duration time.Duration, err error) {
	c.latency.WithLabelValues(table, "flush", status(err)).Observe(duration.Seconds())
	if err == nil {
		c.docs.WithLabelValues(table, "flush").Add(float64(docs))
	}
}

// RecordSearch implements ftsync.MetricsCollector.
func (c *Collector) RecordSearch(table string, hits int, duration time.Duration, err error) {
	c.latency.WithLabelValues(table, "search", status(err)).Observe(duration.Seconds())
	if err == nil {
		c.hits.WithLabelValues(table).Observe(float64(hits))
	}
}

// RecordBackfill implements ftsync.MetricsCollector.
func (c *Collector) RecordBackfill(table string, docs int, duration time.Duration, err error) {
	c.latency.WithLabelValues(table, "backfill", status(err)).Observe(duration.Seconds())
	c.backfills.WithLabelValues(table, status(err)).Inc()
	if err == nil {
		c.docs.WithLabelValues(table, "backfill").Add(float64(docs))
	}
}

// RecordPending implements ftsync.MetricsCollector.
func (c *Collector) RecordPending(table string, batches int) {
	c.pending.WithLabelValues(table).Set(float64(batches))
}
