package telemetry

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollbook_sessions_recorded_total",
		Help: "Attendance sessions committed.",
	})
	AttendanceRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollbook_attendance_rows_total",
		Help: "Attendance rows committed, one per student per session.",
	})
	SkippedEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollbook_skipped_entries_total",
		Help: "Submitted entries dropped for a missing roll number or status.",
	})
	LowAttendanceAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollbook_low_attendance_alerts_total",
		Help: "Students found below the low attendance threshold after a session.",
	})
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollbook_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	})

	httpRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rollbook_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// GinMiddleware records request latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
