package monitor

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "ml_infra"
	subsystem = "qgen"
)

var (
	jobsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_submitted_total",
			Help:      "Async submissions by outcome (ok, store_error, trigger_error, invalid_location).",
		},
		[]string{"outcome"},
	)
	pollAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "poll_attempts_total",
			Help:      "Result probes by outcome (ready, not_found, failed, malformed).",
		},
		[]string{"outcome"},
	)
	jobsTerminal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_total",
			Help:      "Jobs that reached a terminal state.",
		},
		[]string{"state"},
	)
	jobWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "job_wait_seconds",
			Help:      "Time from submission to terminal state.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"state"},
	)
	syncGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sync_generations_total",
			Help:      "Realtime generation batches by outcome.",
		},
		[]string{"outcome"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"route", "method", "code"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	registerOnce sync.Once
)

// Collectors returns every collector owned by this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		jobsSubmitted, pollAttempts, jobsTerminal, jobWait,
		syncGenerations, httpRequests, httpDuration,
	}
}

// InitPrometheusMonitoring registers the collectors with reg once per process.
func InitPrometheusMonitoring(reg prometheus.Registerer) error {
	var err error
	registerOnce.Do(func() {
		for _, c := range Collectors() {
			if err = reg.Register(c); err != nil {
				return
			}
		}
	})
	return err
}

func RecordJobSubmitted(outcome string) {
	jobsSubmitted.WithLabelValues(outcome).Inc()
}

func RecordPollAttempt(outcome string) {
	pollAttempts.WithLabelValues(outcome).Inc()
}

// RecordJobTerminal counts a terminal transition and observes the wait since submission.
func RecordJobTerminal(state string, wait time.Duration) {
	jobsTerminal.WithLabelValues(state).Inc()
	jobWait.WithLabelValues(state).Observe(wait.Seconds())
}

func RecordSyncGeneration(outcome string) {
	syncGenerations.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest is called by middleware.PrometheusMiddleware after each request.
func RecordHTTPRequest(route, method string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
