package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timetable", Name: "http_requests_total", Help: "Processed API requests",
	}, []string{"route", "code"})
	HandlerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "timetable", Name: "handler_errors_total", Help: "Handler errors",
	})
	LeaveResolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timetable", Name: "leave_resolutions_total", Help: "Leave resolutions by outcome",
	}, []string{"outcome"})
	GridsGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "timetable", Name: "grids_generated_total", Help: "Generated timetable drafts",
	})
	TemplatesSaved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "timetable", Name: "templates_saved_total", Help: "Saved weekly templates",
	})
	NotificationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "timetable", Name: "notification_failures_total", Help: "Undelivered notifications",
	})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "timetable", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(HTTPRequests, HandlerErrors, LeaveResolutions, GridsGenerated,
		TemplatesSaved, NotificationFailures, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }
