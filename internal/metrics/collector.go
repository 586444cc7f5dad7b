// Package metrics exposes Prometheus instrumentation for the job queue.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector tracks queue throughput and state for the /metrics endpoint.
// All methods are safe on a nil receiver so instrumentation stays optional.
type Collector struct {
	registry *prometheus.Registry

	jobsSubmitted prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsFailed    *prometheus.CounterVec
	jobsCancelled prometheus.Counter
	segments      prometheus.Counter

	queueDepth prometheus.Gauge
	activeJobs prometheus.Gauge

	jobDuration prometheus.Histogram
}

// NewCollector creates and registers all queue metrics on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "whisperwatch_jobs_submitted_total",
			Help: "Total transcription jobs submitted to the queue.",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "whisperwatch_jobs_completed_total",
			Help: "Total jobs that finished with a written subtitle file.",
		}),
		jobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whisperwatch_jobs_failed_total",
			Help: "Total failed jobs by error kind.",
		}, []string{"kind"}),
		jobsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "whisperwatch_jobs_cancelled_total",
			Help: "Total jobs cancelled before or during processing.",
		}),
		segments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "whisperwatch_segments_total",
			Help: "Total transcript segments appended across all jobs.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "whisperwatch_queue_depth",
			Help: "Number of jobs waiting in the pending queue.",
		}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "whisperwatch_active_jobs",
			Help: "Number of jobs currently being processed (0 or 1).",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisperwatch_job_duration_seconds",
			Help:    "Wall time from worker start to terminal state.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}

	c.registry.MustRegister(
		c.jobsSubmitted,
		c.jobsCompleted,
		c.jobsFailed,
		c.jobsCancelled,
		c.segments,
		c.queueDepth,
		c.activeJobs,
		c.jobDuration,
	)
	return c
}

// Handler returns the HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// JobSubmitted records one accepted submission.
func (c *Collector) JobSubmitted() {
	if c != nil {
		c.jobsSubmitted.Inc()
	}
}

// JobCompleted records a successful terminal state.
func (c *Collector) JobCompleted(duration time.Duration) {
	if c != nil {
		c.jobsCompleted.Inc()
		c.jobDuration.Observe(duration.Seconds())
	}
}

// JobFailed records a failed terminal state by error kind.
func (c *Collector) JobFailed(kind string, duration time.Duration) {
	if c != nil {
		c.jobsFailed.WithLabelValues(kind).Inc()
		c.jobDuration.Observe(duration.Seconds())
	}
}

// JobCancelled records a cancelled terminal state.
func (c *Collector) JobCancelled() {
	if c != nil {
		c.jobsCancelled.Inc()
	}
}

// SegmentAppended records one appended transcript segment.
func (c *Collector) SegmentAppended() {
	if c != nil {
		c.segments.Inc()
	}
}

// SetQueueState updates pending depth and active worker gauges.
func (c *Collector) SetQueueState(pending, active int) {
	if c != nil {
		c.queueDepth.Set(float64(pending))
		c.activeJobs.Set(float64(active))
	}
}
