// Package metrics provides Prometheus metric collection and exposure
// for the role detection pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records pipeline metrics against a Prometheus registry.
type Collector struct {
	resolutions       *prometheus.CounterVec
	resolutionLatency prometheus.Histogram
	cacheLookups      *prometheus.CounterVec
	eventsRecorded    *prometheus.CounterVec
	durableWrites     *prometheus.CounterVec
	writesThrottled   prometheus.Counter
	queueDepth        prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roledetect_resolutions_total",
			Help: "Role resolutions by detection method and resolved role",
		}, []string{"method", "role"}),
		resolutionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "roledetect_resolution_latency_seconds",
			Help:    "End-to-end role resolution latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roledetect_cache_lookups_total",
			Help: "Cache lookups by tier and outcome",
		}, []string{"tier", "result"}),
		eventsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roledetect_events_recorded_total",
			Help: "Behavior events recorded by event type",
		}, []string{"type"}),
		durableWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roledetect_durable_writes_total",
			Help: "Durable profile writes by outcome",
		}, []string{"result"}),
		writesThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roledetect_writes_throttled_total",
			Help: "Durable writes suppressed by the per-actor rate limiter",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roledetect_behavior_queue_depth",
			Help: "Pending events in the background persistence queue",
		}),
	}

	reg.MustRegister(
		c.resolutions,
		c.resolutionLatency,
		c.cacheLookups,
		c.eventsRecorded,
		c.durableWrites,
		c.writesThrottled,
		c.queueDepth,
	)

	return c
}

// RecordResolution records one completed resolution.
func (c *Collector) RecordResolution(method, role string, duration time.Duration) {
	c.resolutions.WithLabelValues(method, role).Inc()
	c.resolutionLatency.Observe(duration.Seconds())
}

// RecordCacheLookup records a cache lookup against a tier.
func (c *Collector) RecordCacheLookup(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(tier, result).Inc()
}

// RecordEvent records one ingested behavior event.
func (c *Collector) RecordEvent(eventType string) {
	c.eventsRecorded.WithLabelValues(eventType).Inc()
}

// RecordDurableWrite records the outcome of a durable profile write.
func (c *Collector) RecordDurableWrite(ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	c.durableWrites.WithLabelValues(result).Inc()
}

// RecordThrottled records a write suppressed by the rate limiter.
func (c *Collector) RecordThrottled() {
	c.writesThrottled.Inc()
}

// SetQueueDepth reports the current background queue depth.
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// Handler returns the HTTP handler serving Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
