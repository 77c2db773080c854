package jobs

import "github.com/prometheus/client_golang/prometheus"

var (
	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timetable_job_runs_total",
			Help: "Total background job runs",
		},
		[]string{"job"},
	)

	jobErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timetable_job_errors_total",
			Help: "Total background job errors",
		},
		[]string{"job"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timetable_job_duration_seconds",
			Help:    "Background job duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	remindersSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "timetable_substitute_reminders_total",
			Help: "Substitute reminders delivered",
		},
	)
)

func init() {
	prometheus.MustRegister(jobRuns, jobErrors, jobDuration, remindersSent)
}
