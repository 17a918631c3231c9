package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CycleRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "unfollowninja_cycle_runs_total",
		Help: "Total detection cycles started",
	})
	CycleErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unfollowninja_cycle_errors_total",
		Help: "Total failed detection cycles by failure kind",
	}, []string{"kind"})
	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "unfollowninja_cycle_duration_seconds",
		Help:    "Detection cycle duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	Unfollowers = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "unfollowninja_unfollowers_detected_total",
		Help: "Followers found missing from a snapshot",
	})
	FilteredEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "unfollowninja_events_filtered_total",
		Help: "Unfollow events dropped by the noise filter",
	})
	APIErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unfollowninja_api_errors_total",
		Help: "Failed Twitter API calls",
	}, []string{"endpoint"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unfollowninja_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"command", "outcome"})
)

func init() {
	prometheus.MustRegister(CycleRuns, CycleErrors, CycleDuration, Unfollowers, FilteredEvents, APIErrors, CommandRuns)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
}

// ObserveCycleDuration records a run duration
func ObserveCycleDuration(start time.Time) {
	CycleDuration.Observe(time.Since(start).Seconds())
}

// IncAPIError increments the failed call counter for an endpoint.
func IncAPIError(endpoint string) { APIErrors.WithLabelValues(endpoint).Inc() }

func IncCycleError(kind string) { CycleErrors.WithLabelValues(kind).Inc() }

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd, "ok").Inc() }
func IncCommandError(cmd string) { CommandRuns.WithLabelValues(cmd, "error").Inc() }
