package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposure(t *testing.T) {
	CycleRuns.Inc()
	IncCycleError("rate_limited")
	Unfollowers.Add(3)
	FilteredEvents.Inc()
	IncAPIError("/followers/ids.json")
	IncCommandRun("check")
	ObserveCycleDuration(time.Now().Add(-1500 * time.Millisecond))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, m := range []string{
		"unfollowninja_cycle_runs_total",
		"unfollowninja_cycle_errors_total",
		"unfollowninja_cycle_duration_seconds",
		"unfollowninja_unfollowers_detected_total",
		"unfollowninja_events_filtered_total",
		"unfollowninja_api_errors_total",
		"unfollowninja_command_runs_total",
	} {
		assert.Contains(t, body, m)
	}
}

func TestIncAPIErrorIsPerEndpoint(t *testing.T) {
	before := testutil.ToFloat64(APIErrors.WithLabelValues("/friendships/show.json"))
	IncAPIError("/friendships/show.json")
	IncAPIError("/friendships/show.json")
	assert.Equal(t, before+2, testutil.ToFloat64(APIErrors.WithLabelValues("/friendships/show.json")))
}
