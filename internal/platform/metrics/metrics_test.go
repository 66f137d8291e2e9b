package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSubmission(t *testing.T) {
	before := testutil.ToFloat64(kpiSubmissions.WithLabelValues("created"))
	RecordSubmission("created")
	RecordSubmission("created")
	if got := testutil.ToFloat64(kpiSubmissions.WithLabelValues("created")) - before; got != 2 {
		t.Errorf("expected 2 increments, got %v", got)
	}
}

func TestRecordEventPublish(t *testing.T) {
	okBefore := testutil.ToFloat64(eventsPublished.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(eventsPublished.WithLabelValues("error"))
	RecordEventPublish(true)
	RecordEventPublish(false)
	if testutil.ToFloat64(eventsPublished.WithLabelValues("ok"))-okBefore != 1 {
		t.Error("expected ok counter to increment")
	}
	if testutil.ToFloat64(eventsPublished.WithLabelValues("error"))-errBefore != 1 {
		t.Error("expected error counter to increment")
	}
}

func TestTrackInFlight(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsInFlight)
	done := TrackInFlight()
	if testutil.ToFloat64(httpRequestsInFlight) != before+1 {
		t.Error("expected gauge to increase")
	}
	done()
	if testutil.ToFloat64(httpRequestsInFlight) != before {
		t.Error("expected gauge to return to baseline")
	}
}

func TestHandler_ExposesKPIMetrics(t *testing.T) {
	RecordAnomaly("HIGH")
	ObserveHTTP(http.MethodGet, "/api/v1/leaderboard", http.StatusOK, 5*time.Millisecond)
	ObserveAnalytics("leaderboard", time.Now())

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{
		"kpi_anomalies_detected_total",
		"http_requests_total",
		"kpi_analytics_duration_seconds",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}
