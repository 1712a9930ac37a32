package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	ScoringRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_requests_total",
			Help: "Requests sent to the scoring service by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	ScoringLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoring_request_duration_seconds",
			Help:    "Latency of scoring service requests",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"endpoint"},
	)

	MatchesComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_matches_computed_total",
			Help: "Smart matches computed by recommendation strength and suggestion type",
		},
		[]string{"strength", "suggestion"},
	)

	SectorSimilaritySkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sector_similarity_skipped_total",
			Help: "Matches where the startup sector was already preferred by the investor",
		},
	)

	ProfileCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_cache_lookups_total",
			Help: "Profile cache lookups by profile kind and result",
		},
		[]string{"kind", "result"},
	)
)

// ObserveJob records the outcome of one processed job.
func ObserveJob(taskType, errorCode string, seconds float64) {
	WorkerJobDuration.WithLabelValues(taskType).Observe(seconds)
	if errorCode == "" {
		WorkerJobsCompleted.WithLabelValues(taskType).Inc()
		return
	}
	WorkerJobsFailed.WithLabelValues(taskType, errorCode).Inc()
}
