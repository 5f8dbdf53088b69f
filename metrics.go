package ftsync

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; package prom
// provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordFlush is called after each flush of a table index.
	// docs is the number of applied upserts and deletes, err is nil if successful.
	RecordFlush(table string, docs int, duration time.Duration, err error)

	// RecordSearch is called after each search.
	RecordSearch(table string, hits int, duration time.Duration, err error)

	// RecordBackfill is called after each full rebuild of a table index.
	RecordBackfill(table string, docs int, duration time.Duration, err error)

	// RecordPending is called whenever the number of pending batches of a
	// table changes.
	RecordPending(table string, batches int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordFlush(string, int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordSearch(string, int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordBackfill(string, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordPending(string, int)                        {}

// BasicMetricsCollector provides simple in-memory metrics collection
// aggregated over all tables.
type BasicMetricsCollector struct {
	FlushCount       atomic.Int64
	FlushErrors      atomic.Int64
	FlushDocs        atomic.Int64
	FlushTotalNanos  atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchHits       atomic.Int64
	SearchTotalNanos atomic.Int64
	BackfillCount    atomic.Int64
	BackfillDocs     atomic.Int64
	BackfillErrors   atomic.Int64
	Pending          atomic.Int64

	mu       sync.Mutex
	perTable map[string]int64
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(_ string, docs int, duration time.Duration, err error) {
	b.FlushCount.Add(1)
	b.FlushTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FlushErrors.Add(1)
		return
	}
	b.FlushDocs.Add(int64(docs))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ string, hits int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
		return
	}
	b.SearchHits.Add(int64(hits))
}

// RecordBackfill implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBackfill(_ string, docs int, _ time.Duration, err error) {
	b.BackfillCount.Add(1)
	if err != nil {
		b.BackfillErrors.Add(1)
		return
	}
	b.BackfillDocs.Add(int64(docs))
}

// RecordPending implements MetricsCollector. Pending holds the sum over all
// tables.
func (b *BasicMetricsCollector) RecordPending(table string, batches int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.perTable == nil {
		b.perTable = make(map[string]int64)
	}
	b.Pending.Add(int64(batches) - b.perTable[table])
	b.perTable[table] = int64(batches)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		FlushCount:     b.FlushCount.Load(),
		FlushErrors:    b.FlushErrors.Load(),
		FlushDocs:      b.FlushDocs.Load(),
		FlushAvgNanos:  avg(b.FlushTotalNanos.Load(), b.FlushCount.Load()),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchHits:     b.SearchHits.Load(),
		SearchAvgNanos: avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		BackfillCount:  b.BackfillCount.Load(),
		BackfillDocs:   b.BackfillDocs.Load(),
		BackfillErrors: b.BackfillErrors.Load(),
		Pending:        b.Pending.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	FlushCount     int64
	FlushErrors    int64
	FlushDocs      int64
	FlushAvgNanos  int64
	SearchCount    int64
	SearchErrors   int64
	SearchHits     int64
	SearchAvgNanos int64
	BackfillCount  int64
	BackfillDocs   int64
	BackfillErrors int64
	Pending        int64
}
