// Package monitoring tracks learning-core activity counters and derives a
// health classification from them.
package monitoring

import (
	"math"
	"sync/atomic"
	"time"
)

// Health states reported by Metrics.HealthStatus.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// degradedErrorRatio is the error ratio above which the core reports
// degraded health.
const degradedErrorRatio = 0.10

// Metrics holds thread-safe counters and gauges for the learning core.
// All fields are atomics so the hot path never takes a lock.
type Metrics struct {
	startedAt time.Time

	eventsProcessed   atomic.Int64
	patternsStored    atomic.Int64
	insightsGenerated atomic.Int64
	predictionsMade   atomic.Int64
	errorsEncountered atomic.Int64
	eventsDropped     atomic.Int64

	// Running average of processing time, kept as count + sum.
	processingCount atomic.Int64
	processingSumUS atomic.Int64 // microseconds

	memoryUsageMB  atomic.Uint64 // float64 bits
	storageUsageMB atomic.Uint64 // float64 bits
}

// NewMetrics creates a Metrics with the uptime clock started now.
func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

// EventProcessed records one processed event and its processing time.
func (m *Metrics) EventProcessed(d time.Duration) {
	m.eventsProcessed.Add(1)
	m.processingCount.Add(1)
	m.processingSumUS.Add(d.Microseconds())
}

// PatternStored records one pattern write.
func (m *Metrics) PatternStored() { m.patternsStored.Add(1) }

// InsightGenerated records one generated insight.
func (m *Metrics) InsightGenerated() { m.insightsGenerated.Add(1) }

// PredictionMade records one outcome prediction.
func (m *Metrics) PredictionMade() { m.predictionsMade.Add(1) }

// ErrorEncountered records one absorbed error.
func (m *Metrics) ErrorEncountered() { m.errorsEncountered.Add(1) }

// EventDropped records one event dropped due to queue overflow.
func (m *Metrics) EventDropped() { m.eventsDropped.Add(1) }

// SetMemoryUsageMB updates the memory gauge.
func (m *Metrics) SetMemoryUsageMB(mb float64) {
	m.memoryUsageMB.Store(math.Float64bits(mb))
}

// SetStorageUsageMB updates the storage gauge.
func (m *Metrics) SetStorageUsageMB(mb float64) {
	m.storageUsageMB.Store(math.Float64bits(mb))
}

// EventsProcessed returns the processed-event count.
func (m *Metrics) EventsProcessed() int64 { return m.eventsProcessed.Load() }

// ErrorsEncountered returns the absorbed-error count.
func (m *Metrics) ErrorsEncountered() int64 { return m.errorsEncountered.Load() }

// EventsDropped returns the overflow-drop count.
func (m *Metrics) EventsDropped() int64 { return m.eventsDropped.Load() }

// AvgProcessingMS returns the running-average event processing time in
// milliseconds.
func (m *Metrics) AvgProcessingMS() float64 {
	count := m.processingCount.Load()
	if count == 0 {
		return 0
	}
	return float64(m.processingSumUS.Load()) / float64(count) / 1000.0
}

// Status returns the health classification: degraded when more than 10% of
// processed events encountered errors.
func (m *Metrics) Status() string {
	processed := m.eventsProcessed.Load()
	if processed < 1 {
		processed = 1
	}
	if float64(m.errorsEncountered.Load())/float64(processed) > degradedErrorRatio {
		return StatusDegraded
	}
	return StatusHealthy
}

// Snapshot returns all metric values for health reporting.
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"events_processed":       m.eventsProcessed.Load(),
		"patterns_stored":        m.patternsStored.Load(),
		"insights_generated":     m.insightsGenerated.Load(),
		"predictions_made":       m.predictionsMade.Load(),
		"errors_encountered":     m.errorsEncountered.Load(),
		"events_dropped":         m.eventsDropped.Load(),
		"avg_processing_time_ms": m.AvgProcessingMS(),
		"memory_usage_mb":        math.Float64frombits(m.memoryUsageMB.Load()),
		"storage_usage_mb":       math.Float64frombits(m.storageUsageMB.Load()),
		"uptime_seconds":         time.Since(m.startedAt).Seconds(),
	}
}
