package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	healthCheckURI = "/healthz"
	metricsURI     = "/metrics"
)

// HealthCheck reports process liveness and uptime as JSON.
type HealthCheck struct {
	StartTime time.Time
	GitRev    string
}

func (hc HealthCheck) handlerFunc(log logr.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		res := struct {
			GitRev        string `json:"git_rev"`
			UptimeSeconds string `json:"uptime_seconds"`
			Goroutines    int    `json:"goroutines"`
		}{
			GitRev:        hc.GitRev,
			UptimeSeconds: fmt.Sprintf("%.2f", time.Since(hc.StartTime).Seconds()),
			Goroutines:    runtime.NumGoroutine(),
		}
		if err := json.NewEncoder(w).Encode(&res); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			log.Error(err, "marshaling healthcheck json")
		}
	}
}

// NewMux builds the orchestration HTTP server's route table: the route
// handlers each wrapped in Recovery, Logging, and RequestMetrics (in that
// order, innermost first), plus health/metrics endpoints without that
// chain. OTel wraps the whole mux, health/metrics included.
//
// Trusted-proxy (X-Forwarded-For) support is intentionally absent: the
// upstream middleware package this is grounded on gates it behind a
// dedicated xff package this module does not depend on.
func NewMux(h *Handlers, healthCheck HealthCheck, otelOperation string) http.Handler {
	mux := http.NewServeMux()

	chain := func(handler http.HandlerFunc) http.Handler {
		var wrapped http.Handler = handler
		wrapped = Recovery(h.Log)(wrapped)
		wrapped = Logging(h.Log)(wrapped)
		wrapped = RequestMetrics()(wrapped)
		return wrapped
	}

	mux.Handle("GET /boot", chain(h.Boot))
	mux.Handle("GET /done", chain(h.Done))
	mux.Handle("GET /iso/{release}/{path...}", chain(h.ISO))
	mux.Handle("GET /content/combine/{name}", chain(h.ContentCombine))
	mux.Handle("GET /content/raw/{release}/{filename}", chain(h.ContentRaw))
	mux.Handle("GET /views/{path...}", chain(h.Views))

	mux.Handle(healthCheckURI, healthCheck.handlerFunc(h.Log))
	mux.Handle(metricsURI, promhttp.Handler())

	return OTel(otelOperation)(mux)
}
