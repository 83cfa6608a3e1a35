package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/breakfast/pkg/metrics"
)

type healthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
	Error  string `json:"error,omitempty"`
}

// handleHealth handles GET /health. The store must answer a ping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := time.Now().Format(time.RFC3339)
	if err := s.deps.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Time: now, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Time: now})
}

// handleMetrics serves the Prometheus registry on /metrics and /healthz.
func handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
