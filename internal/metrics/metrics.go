// Package metrics exposes process-wide Prometheus collectors for clipdl's
// HTTP surface, intake, and outbound request pacing. Job and queue metrics
// are derived from progress events by sinks.PrometheusSink.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Intake results.
const (
	IntakeAccepted = "accepted"
	IntakeIgnored  = "ignored"
	IntakeNotReady = "not_ready"
	IntakeRejected = "rejected"
)

var (
	intakeCandidatesTotal      *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	transcodeDurationSeconds   prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		intakeCandidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clipdl_intake_candidates_total",
				Help: "Candidate texts seen by intake, labeled by result.",
			},
			[]string{"result"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clipdl_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clipdl_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clipdl_rate_limit_delay_seconds",
				Help:    "Time outbound requests spent waiting for a rate limit token.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"host"},
		)

		transcodeDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "clipdl_transcode_duration_seconds",
				Help:    "Wall time spent inside the encoder per job.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)
	})
}

// SanitizeSite extracts a lowercase hostname for use as a label value.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveIntake counts one candidate text by result.
func ObserveIntake(result string) {
	Init()
	intakeCandidatesTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records how long a request to host waited.
func ObserveRateLimitDelay(host string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(SanitizeSite(host)).Observe(d.Seconds())
}

// ObserveTranscode records encoder wall time.
func ObserveTranscode(d time.Duration) {
	Init()
	transcodeDurationSeconds.Observe(d.Seconds())
}
