package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// KPI metrics
	kpiSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpi_submissions_total",
			Help: "KPI submissions by outcome",
		},
		[]string{"outcome"},
	)

	anomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpi_anomalies_detected_total",
			Help: "Anomaly findings emitted, by severity",
		},
		[]string{"severity"},
	)

	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpi_events_published_total",
			Help: "KPI submission events published to the broker, by outcome",
		},
		[]string{"outcome"},
	)

	analyticsDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kpi_analytics_duration_seconds",
			Help:    "Time spent computing analytics responses",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// TrackInFlight increments the in-flight gauge and returns the matching
// decrement.
func TrackInFlight() func() {
	httpRequestsInFlight.Inc()
	return httpRequestsInFlight.Dec
}

// ObserveHTTP records one finished request. route should be the matched
// route template, not the raw path, to keep label cardinality bounded.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordSubmission(outcome string) {
	kpiSubmissions.WithLabelValues(outcome).Inc()
}

func RecordAnomaly(severity string) {
	anomaliesDetected.WithLabelValues(severity).Inc()
}

func RecordEventPublish(ok bool) {
	outcome := "error"
	if ok {
		outcome = "ok"
	}
	eventsPublished.WithLabelValues(outcome).Inc()
}

// ObserveAnalytics records the elapsed time since start for operation.
func ObserveAnalytics(operation string, start time.Time) {
	analyticsDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
