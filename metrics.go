package rangestream

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/rangestream/stream"
)

// MetricsCollector defines an interface for collecting planning metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    scanCounter      prometheus.Counter
//	    planningDuration prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordScanOpened(duration time.Duration, err error) {
//	    p.scanCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordStreamPlans is called after each planning call with the root
	// context, the time taken and the error, if any.
	RecordStreamPlans(duration time.Duration, c stream.Context, err error)

	// RecordScanOpened is called for every index scan a session opens.
	RecordScanOpened(duration time.Duration, err error)

	// RecordPlan is called for every plan handed to the caller.
	RecordPlan(ranges int)

	// RecordPlanPruned is called for every plan dropped for lack of ranges.
	RecordPlanPruned()

	// RecordCloseError is called when a scan or stream fails to close.
	RecordCloseError(err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordStreamPlans(time.Duration, stream.Context, error) {}
func (NoopMetricsCollector) RecordScanOpened(time.Duration, error)                  {}
func (NoopMetricsCollector) RecordPlan(int)                                         {}
func (NoopMetricsCollector) RecordPlanPruned()                                      {}
func (NoopMetricsCollector) RecordCloseError(error)                                 {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	PlanningCount      atomic.Int64
	PlanningErrors     atomic.Int64
	PlanningTotalNanos atomic.Int64
	ScansOpened        atomic.Int64
	ScanErrors         atomic.Int64
	ScanTotalNanos     atomic.Int64
	Plans              atomic.Int64
	Ranges             atomic.Int64
	PlansPruned        atomic.Int64
	CloseErrors        atomic.Int64

	contexts [stream.ExceededValueThreshold + 1]atomic.Int64
}

// RecordStreamPlans implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStreamPlans(duration time.Duration, c stream.Context, err error) {
	b.PlanningCount.Add(1)
	b.PlanningTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PlanningErrors.Add(1)
		return
	}
	if int(c) < len(b.contexts) {
		b.contexts[c].Add(1)
	}
}

// RecordScanOpened implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScanOpened(duration time.Duration, err error) {
	b.ScansOpened.Add(1)
	b.ScanTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ScanErrors.Add(1)
	}
}

// RecordPlan implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPlan(ranges int) {
	b.Plans.Add(1)
	b.Ranges.Add(int64(ranges))
}

// RecordPlanPruned implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPlanPruned() {
	b.PlansPruned.Add(1)
}

// RecordCloseError implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCloseError(error) {
	b.CloseErrors.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		PlanningCount:    b.PlanningCount.Load(),
		PlanningErrors:   b.PlanningErrors.Load(),
		PlanningAvgNanos: avg(b.PlanningTotalNanos.Load(), b.PlanningCount.Load()),
		ScansOpened:      b.ScansOpened.Load(),
		ScanErrors:       b.ScanErrors.Load(),
		ScanAvgNanos:     avg(b.ScanTotalNanos.Load(), b.ScansOpened.Load()),
		Plans:            b.Plans.Load(),
		Ranges:           b.Ranges.Load(),
		PlansPruned:      b.PlansPruned.Load(),
		CloseErrors:      b.CloseErrors.Load(),
		Contexts:         make(map[string]int64),
	}
	for i := range b.contexts {
		if n := b.contexts[i].Load(); n > 0 {
			s.Contexts[stream.Context(i).String()] = n
		}
	}
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
	PlanningCount    int64
	PlanningErrors   int64
	PlanningAvgNanos int64
	ScansOpened      int64
	ScanErrors       int64
	ScanAvgNanos     int64
	Plans            int64
	Ranges           int64
	PlansPruned      int64
	CloseErrors      int64
	// Contexts counts successful planning calls by root context.
	Contexts map[string]int64
}
