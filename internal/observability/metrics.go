package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	feedbackSubmitted     *prometheus.CounterVec
	taskTransitions       *prometheus.CounterVec
	feedbackPushes        *prometheus.CounterVec
	attentionFlagChanges  *prometheus.CounterVec
	statsCacheLookups     *prometheus.CounterVec
	attentionSweepFlagged prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutordesk_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tutordesk_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutordesk_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		feedbackSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutordesk_feedback_submitted_total",
			Help: "Feedback rows created, by entry path.",
		}, []string{"path"})

		taskTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutordesk_task_transitions_total",
			Help: "Teaching task status changes, by target status.",
		}, []string{"status"})

		feedbackPushes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutordesk_feedback_pushes_total",
			Help: "Feedback rows pushed to another department.",
		}, []string{"target"})

		attentionFlagChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutordesk_attention_flag_changes_total",
			Help: "Attention flag writes, by source and value.",
		}, []string{"source", "value"})

		statsCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutordesk_stats_cache_lookups_total",
			Help: "Teacher statistics cache lookups, by result.",
		}, []string{"result"})

		attentionSweepFlagged = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tutordesk_attention_sweep_flagged_total",
			Help: "Students flagged by the scheduled attention sweep.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			feedbackSubmitted,
			taskTransitions,
			feedbackPushes,
			attentionFlagChanges,
			statsCacheLookups,
			attentionSweepFlagged,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// FeedbackSubmitted counts created feedback rows.
func FeedbackSubmitted() *prometheus.CounterVec {
	RegisterMetrics()
	return feedbackSubmitted
}

// TaskTransitions counts teaching task status changes.
func TaskTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return taskTransitions
}

// FeedbackPushes counts pushed feedback rows.
func FeedbackPushes() *prometheus.CounterVec {
	RegisterMetrics()
	return feedbackPushes
}

// AttentionFlagChanges counts attention flag writes.
func AttentionFlagChanges() *prometheus.CounterVec {
	RegisterMetrics()
	return attentionFlagChanges
}

// StatsCacheLookups counts teacher statistics cache hits and misses.
func StatsCacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return statsCacheLookups
}

// AttentionSweepFlagged counts students flagged by the sweep.
func AttentionSweepFlagged() prometheus.Counter {
	RegisterMetrics()
	return attentionSweepFlagged
}
