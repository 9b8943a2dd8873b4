package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records outcomes for background jobs, currently just the stale
// checkout reaper.
type JobMetrics struct {
	duration        *prometheus.HistogramVec
	success         *prometheus.CounterVec
	failure         *prometheus.CounterVec
	cancelledOrders prometheus.Counter
}

// NewJobMetrics registers the job metrics on the provided registerer. A nil
// registerer yields a no-op recorder, which keeps tests and one-shot commands
// from dragging a registry around.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of background jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful background job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed background job executions.",
	}, []string{"job"})
	cancelledOrders := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_cancelled_orders_total",
		Help: "Pending orders cancelled by the reaper.",
	})
	reg.MustRegister(duration, success, failure, cancelledOrders)
	return &JobMetrics{
		duration:        duration,
		success:         success,
		failure:         failure,
		cancelledOrders: cancelledOrders,
	}
}

// ObserveDuration records the duration for the named job.
func (j *JobMetrics) ObserveDuration(job string, duration time.Duration) {
	if j == nil || j.duration == nil {
		return
	}
	j.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (j *JobMetrics) IncSuccess(job string) {
	if j == nil || j.success == nil {
		return
	}
	j.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (j *JobMetrics) IncFailure(job string) {
	if j == nil || j.failure == nil {
		return
	}
	j.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// AddCancelledOrders counts orders the reaper moved to cancelled.
func (j *JobMetrics) AddCancelledOrders(n int) {
	if j == nil || j.cancelledOrders == nil || n <= 0 {
		return
	}
	j.cancelledOrders.Add(float64(n))
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
