package gomam

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/gomam/result"
)

// MetricsCollector collects operational metrics of an Index.
// Implement it to forward measurements to a monitoring system.
type MetricsCollector interface {
	// RecordAdd is called after each insertion.
	RecordAdd(duration time.Duration, err error)

	// RecordQuery is called after each query with its cost.
	RecordQuery(stats QueryStats, err error)

	// RecordBuild is called after each bulk build.
	RecordBuild(objects int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd(time.Duration, error)        {}
func (NoopMetricsCollector) RecordQuery(QueryStats, error)         {}
func (NoopMetricsCollector) RecordBuild(int, time.Duration, error) {}

// BasicMetricsCollector keeps in-memory counters.
type BasicMetricsCollector struct {
	AddCount      atomic.Int64
	AddErrors     atomic.Int64
	AddTotalNanos atomic.Int64
	QueryCount    atomic.Int64
	QueryErrors   atomic.Int64
	QueryNanos    atomic.Int64
	Distances     atomic.Uint64
	PageReads     atomic.Uint64
	BuildCount    atomic.Int64
	BuildErrors   atomic.Int64
	BuildObjects  atomic.Int64
	BuildNanos    atomic.Int64

	mu     sync.Mutex
	byType map[result.QueryType]int64
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(duration time.Duration, err error) {
	b.AddCount.Add(1)
	b.AddTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AddErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(stats QueryStats, err error) {
	b.QueryCount.Add(1)
	b.QueryNanos.Add(stats.Duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
		return
	}
	b.Distances.Add(stats.Distances)
	b.PageReads.Add(stats.PageReads)

	b.mu.Lock()
	if b.byType == nil {
		b.byType = make(map[result.QueryType]int64)
	}
	b.byType[stats.Type]++
	b.mu.Unlock()
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(objects int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildObjects.Add(int64(objects))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		AddCount:      b.AddCount.Load(),
		AddErrors:     b.AddErrors.Load(),
		AddAvgNanos:   avg(b.AddTotalNanos.Load(), b.AddCount.Load()),
		QueryCount:    b.QueryCount.Load(),
		QueryErrors:   b.QueryErrors.Load(),
		QueryAvgNanos: avg(b.QueryNanos.Load(), b.QueryCount.Load()),
		Distances:     b.Distances.Load(),
		PageReads:     b.PageReads.Load(),
		BuildCount:    b.BuildCount.Load(),
		BuildErrors:   b.BuildErrors.Load(),
		BuildObjects:  b.BuildObjects.Load(),
		QueriesByType: make(map[result.QueryType]int64),
	}
	b.mu.Lock()
	for k, v := range b.byType {
		s.QueriesByType[k] = v
	}
	b.mu.Unlock()
	return s
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AddCount      int64
	AddErrors     int64
	AddAvgNanos   int64
	QueryCount    int64
	QueryErrors   int64
	QueryAvgNanos int64
	Distances     uint64
	PageReads     uint64
	BuildCount    int64
	BuildErrors   int64
	BuildObjects  int64
	QueriesByType map[result.QueryType]int64
}
