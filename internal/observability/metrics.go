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
	predictionsTotal      *prometheus.CounterVec
	assessmentsTotal      *prometheus.CounterVec
	jobRunsTotal          *prometheus.CounterVec
	jobDurationSeconds    *prometheus.HistogramVec
	jobItemFailuresTotal  *prometheus.CounterVec
	eventsPublishedTotal  *prometheus.CounterVec
	dashboardCacheResults *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors of the analytics engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_requests_total",
			Help: "Total number of predictive analytics API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "analytics_latency_seconds",
			Help:    "Latency distribution for predictive analytics API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_errors_total",
			Help: "Total number of error responses returned by predictive analytics endpoints.",
		}, []string{"method", "route", "status"})

		predictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_predictions_total",
			Help: "Predictions generated by type and model source.",
		}, []string{"prediction_type", "source"})

		assessmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_risk_assessments_total",
			Help: "Dropout risk assessments by resulting level.",
		}, []string{"risk_level"})

		jobRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_job_runs_total",
			Help: "Background job runs by name and final status.",
		}, []string{"job", "status"})

		jobDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "analytics_job_duration_seconds",
			Help:    "Duration of background job runs.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		}, []string{"job"})

		jobItemFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_job_item_failures_total",
			Help: "Cohort items that failed inside a background job.",
		}, []string{"job"})

		eventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_events_published_total",
			Help: "Alert, reminder and model events handed to the notification collaborator.",
		}, []string{"kind", "transport"})

		dashboardCacheResults = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_dashboard_cache_total",
			Help: "Dashboard cache lookups by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			predictionsTotal,
			assessmentsTotal,
			jobRunsTotal,
			jobDurationSeconds,
			jobItemFailuresTotal,
			eventsPublishedTotal,
			dashboardCacheResults,
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

// Predictions exposes the prediction counter.
func Predictions() *prometheus.CounterVec {
	RegisterMetrics()
	return predictionsTotal
}

// RiskAssessments exposes the assessment counter.
func RiskAssessments() *prometheus.CounterVec {
	RegisterMetrics()
	return assessmentsTotal
}

// JobRuns exposes the job run counter.
func JobRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return jobRunsTotal
}

// JobDuration exposes the job duration histogram.
func JobDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return jobDurationSeconds
}

// JobItemFailures exposes the failed cohort item counter.
func JobItemFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return jobItemFailuresTotal
}

// EventsPublished exposes the published event counter.
func EventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsPublishedTotal
}

// DashboardCache exposes the dashboard cache counter.
func DashboardCache() *prometheus.CounterVec {
	RegisterMetrics()
	return dashboardCacheResults
}
