package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records energyd handler activity per route group.
type HTTPMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	httpMetricsOnce sync.Once
	httpRegistry    *HTTPMetrics
)

// ModuleMetrics returns the lazily registered HTTP metrics.
func ModuleMetrics() *HTTPMetrics {
	httpMetricsOnce.Do(func() {
		httpRegistry = &HTTPMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "energyd",
				Name:      "http_requests_total",
				Help:      "HTTP requests by module, method and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nhb",
				Subsystem: "energyd",
				Name:      "http_request_duration_seconds",
				Help:      "Latency distribution for HTTP handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "energyd",
				Name:      "http_throttled_total",
				Help:      "Requests rejected by the rate limiter per route group.",
			}, []string{"group", "reason"}),
		}
		prometheus.MustRegister(httpRegistry.requests, httpRegistry.latency, httpRegistry.throttles)
	})
	return httpRegistry
}

// Observe records one finished request with the status actually written.
func (m *HTTPMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	module = orUnknown(module)
	method = orUnknown(method)
	m.requests.WithLabelValues(module, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle counts a rejected request. reason should be a stable string
// such as "rate_limit".
func (m *HTTPMetrics) RecordThrottle(group, reason string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(orUnknown(group), orUnknown(reason)).Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
