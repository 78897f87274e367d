package monitoring

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes a Metrics instance as a prometheus.Collector so
// operators can scrape the learning core alongside the host system.
type Collector struct {
	metrics *Metrics

	eventsProcessed   *prometheus.Desc
	patternsStored    *prometheus.Desc
	insightsGenerated *prometheus.Desc
	predictionsMade   *prometheus.Desc
	errorsEncountered *prometheus.Desc
	eventsDropped     *prometheus.Desc
	avgProcessingMS   *prometheus.Desc
	memoryUsageMB     *prometheus.Desc
	storageUsageMB    *prometheus.Desc
	healthy           *prometheus.Desc
}

// NewCollector creates a Collector over the given metrics.
func NewCollector(m *Metrics) *Collector {
	return &Collector{
		metrics: m,
		eventsProcessed: prometheus.NewDesc("vigil_events_processed_total",
			"Total validation events processed by the learning core", nil, nil),
		patternsStored: prometheus.NewDesc("vigil_patterns_stored_total",
			"Total pattern writes", nil, nil),
		insightsGenerated: prometheus.NewDesc("vigil_insights_generated_total",
			"Total insight responses generated", nil, nil),
		predictionsMade: prometheus.NewDesc("vigil_predictions_made_total",
			"Total outcome predictions made", nil, nil),
		errorsEncountered: prometheus.NewDesc("vigil_errors_encountered_total",
			"Total errors absorbed by the learning core", nil, nil),
		eventsDropped: prometheus.NewDesc("vigil_events_dropped_total",
			"Total events dropped due to write-queue overflow", nil, nil),
		avgProcessingMS: prometheus.NewDesc("vigil_avg_processing_time_ms",
			"Running-average event processing time in milliseconds", nil, nil),
		memoryUsageMB: prometheus.NewDesc("vigil_memory_usage_mb",
			"Process memory usage in MB at last sample", nil, nil),
		storageUsageMB: prometheus.NewDesc("vigil_storage_usage_mb",
			"Learning storage footprint in MB at last sample", nil, nil),
		healthy: prometheus.NewDesc("vigil_healthy",
			"1 when the learning core is healthy, 0 when degraded", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.eventsProcessed
	ch <- c.patternsStored
	ch <- c.insightsGenerated
	ch <- c.predictionsMade
	ch <- c.errorsEncountered
	ch <- c.eventsDropped
	ch <- c.avgProcessingMS
	ch <- c.memoryUsageMB
	ch <- c.storageUsageMB
	ch <- c.healthy
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.metrics
	ch <- prometheus.MustNewConstMetric(c.eventsProcessed, prometheus.CounterValue,
		float64(m.eventsProcessed.Load()))
	ch <- prometheus.MustNewConstMetric(c.patternsStored, prometheus.CounterValue,
		float64(m.patternsStored.Load()))
	ch <- prometheus.MustNewConstMetric(c.insightsGenerated, prometheus.CounterValue,
		float64(m.insightsGenerated.Load()))
	ch <- prometheus.MustNewConstMetric(c.predictionsMade, prometheus.CounterValue,
		float64(m.predictionsMade.Load()))
	ch <- prometheus.MustNewConstMetric(c.errorsEncountered, prometheus.CounterValue,
		float64(m.errorsEncountered.Load()))
	ch <- prometheus.MustNewConstMetric(c.eventsDropped, prometheus.CounterValue,
		float64(m.eventsDropped.Load()))
	ch <- prometheus.MustNewConstMetric(c.avgProcessingMS, prometheus.GaugeValue,
		m.AvgProcessingMS())
	ch <- prometheus.MustNewConstMetric(c.memoryUsageMB, prometheus.GaugeValue,
		math.Float64frombits(m.memoryUsageMB.Load()))
	ch <- prometheus.MustNewConstMetric(c.storageUsageMB, prometheus.GaugeValue,
		math.Float64frombits(m.storageUsageMB.Load()))

	healthy := 1.0
	if m.Status() != StatusHealthy {
		healthy = 0.0
	}
	ch <- prometheus.MustNewConstMetric(c.healthy, prometheus.GaugeValue, healthy)
}
