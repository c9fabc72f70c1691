package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "volunteer_hub_build_info",
			Help:        "Build information",
			ConstLabels: prometheus.Labels{"component": "server"},
		},
		[]string{"version"},
	)

	attendanceTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volunteer_hub_attendance_transitions_total",
			Help: "Attendance state machine operations by kind and outcome",
		},
		[]string{"transition", "outcome"},
	)

	matchQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volunteer_hub_match_queries_total",
			Help: "Match queries by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)

	matchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "volunteer_hub_match_duration_seconds",
			Help:    "Time spent scoring candidates for a match query",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"direction"},
	)

	matchCandidates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volunteer_hub_match_candidates_scored_total",
			Help: "Candidates scored by the match engine",
		},
		[]string{"direction"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volunteer_hub_notifications_total",
			Help: "Outbound notifications by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	reliabilityCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volunteer_hub_reliability_cache_total",
			Help: "Reliability cache lookups by result",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volunteer_hub_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "volunteer_hub_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	finalizedEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "volunteer_hub_events_finalized_total",
			Help: "Events closed out by finalize",
		},
	)
)

// Register registers all metrics with the provided registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(buildInfo, attendanceTransitions, matchQueries, matchDuration, matchCandidates,
		notifications, reliabilityCache, httpRequests, httpDuration, finalizedEvents)
}

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version string) {
	buildInfo.WithLabelValues(version).Set(1)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordTransition counts an attendance operation (check_in, check_out, update, no_show, finalize).
func RecordTransition(transition string, err error) {
	attendanceTransitions.WithLabelValues(transition, outcome(err)).Inc()
}

// RecordMatchQuery counts a match query and observes its duration.
func RecordMatchQuery(direction string, candidates int, d time.Duration, err error) {
	matchQueries.WithLabelValues(direction, outcome(err)).Inc()
	matchDuration.WithLabelValues(direction).Observe(d.Seconds())
	matchCandidates.WithLabelValues(direction).Add(float64(candidates))
}

// RecordNotification counts a notification outcome: sent, dropped or error.
func RecordNotification(kind, result string) {
	notifications.WithLabelValues(kind, result).Inc()
}

// RecordReliabilityCache counts a cache hit or miss.
func RecordReliabilityCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	reliabilityCache.WithLabelValues(result).Inc()
}

// RecordHTTPRequest counts a served request; route is the gin route template.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordFinalizedEvent increments the finalized event counter.
func RecordFinalizedEvent() {
	finalizedEvents.Inc()
}
