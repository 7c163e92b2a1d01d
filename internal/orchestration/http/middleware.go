// Package http is the orchestration HTTP server: the /boot, /done,
// /iso/{release}/{path}, /content/combine/{name}, /content/raw/{release}/{filename},
// and /views/{path} routes, plus health/metrics endpoints and the
// middleware chain wrapping every handler.
package http

import (
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"

	"github.com/felixge/httpsnoop"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Logging wraps next with request logging: method, URI, client, duration,
// and response status. Uses httpsnoop.CaptureMetrics to observe the status
// code rather than a hand-rolled http.ResponseWriter wrapper.
func Logging(logger logr.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)
			level := 1
			if m.Code >= http.StatusInternalServerError {
				level = 0
			}
			logger.V(level).Info("response",
				"method", r.Method, "uri", r.RequestURI, "client", clientIP(r.RemoteAddr),
				"duration", m.Duration.String(), "code", m.Code)
		})
	}
}

// Recovery recovers from panics in next, logging the panic and returning a
// 500 rather than crashing the whole server.
func Recovery(log logr.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error(nil, "panic recovered in http handler", "panic", rec, "stack", string(debug.Stack()))
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// OTel wraps next with OpenTelemetry span instrumentation.
func OTel(operation string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, operation)
	}
}

var (
	requestMetricsOnce sync.Once
	requestCount       *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
)

// RequestMetrics wraps next with Prometheus counters/histograms, registered
// exactly once regardless of how many times this is called.
func RequestMetrics() func(http.Handler) http.Handler {
	requestMetricsOnce.Do(func() {
		requestCount = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "serabutd_http_requests_total", Help: "Count of HTTP requests."},
			[]string{"method", "status_code"},
		)
		requestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "serabutd_http_request_duration_seconds",
				Help:    "Histogram of HTTP response time in seconds.",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method", "status_code"},
		)
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)
			status := strconv.Itoa(m.Code)
			requestCount.WithLabelValues(r.Method, status).Inc()
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			requestDuration.WithLabelValues(route, r.Method, status).Observe(m.Duration.Seconds())
		})
	}
}

func clientIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
