package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.JobSubmitted()
		c.JobCompleted(time.Second)
		c.JobFailed("unknown", time.Second)
		c.JobCancelled()
		c.SegmentAppended()
		c.SetQueueState(3, 1)
	})
}

func TestCountersAccumulate(t *testing.T) {
	c := NewCollector()

	c.JobSubmitted()
	c.JobSubmitted()
	c.JobCompleted(2 * time.Second)
	c.JobFailed("output_write_failed", time.Second)
	c.JobCancelled()
	c.SegmentAppended()
	c.SegmentAppended()
	c.SegmentAppended()

	assert.Equal(t, float64(2), testutil.ToFloat64(c.jobsSubmitted))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.jobsCompleted))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.jobsFailed.WithLabelValues("output_write_failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.jobsCancelled))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.segments))
}

func TestQueueStateGauges(t *testing.T) {
	c := NewCollector()

	c.SetQueueState(4, 1)
	assert.Equal(t, float64(4), testutil.ToFloat64(c.queueDepth))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.activeJobs))

	c.SetQueueState(0, 0)
	assert.Equal(t, float64(0), testutil.ToFloat64(c.queueDepth))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.activeJobs))
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	c := NewCollector()
	c.JobSubmitted()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "whisperwatch_jobs_submitted_total 1"), "body: %s", body)
	assert.True(t, strings.Contains(body, "whisperwatch_queue_depth"), "body: %s", body)
}

func TestFreshRegistryPerCollector(t *testing.T) {
	first := NewCollector()
	first.JobSubmitted()

	second := NewCollector()
	assert.Equal(t, float64(0), testutil.ToFloat64(second.jobsSubmitted))
}
