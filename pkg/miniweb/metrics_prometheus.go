//go:build prometheus
// +build prometheus

package miniweb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus exposition for route metrics, gated behind the "prometheus"
// build tag exactly as the teacher gates buffer_pool_prometheus.go — hosts
// that don't want the client_golang dependency in their binary build
// without the tag and get none of this.
//
// Route.RequestCount/TotalTime are already cumulative for the process
// lifetime, so they're exposed as gauges rather than counters: there is no
// delta to track between scrapes.
var (
	routeRequestsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "miniweb",
			Subsystem: "route",
			Name:      "requests_total",
			Help:      "Total requests completed for a route.",
		},
		[]string{"method", "pattern"},
	)

	routeAvgBytesPerRequest = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "miniweb",
			Subsystem: "route",
			Name:      "avg_bytes_per_request",
			Help:      "EWMA-style average reply size in bytes for a route.",
		},
		[]string{"method", "pattern"},
	)

	routeTotalTimeSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "miniweb",
			Subsystem: "route",
			Name:      "total_time_seconds",
			Help:      "Cumulative time spent handling requests for a route.",
		},
		[]string{"method", "pattern"},
	)
)

// UpdatePrometheusMetrics refreshes the route gauges from the server's
// current route table. Call periodically (e.g. from a ticker, or from a
// prometheus.Collector's Collect) — cheap enough to run on every scrape.
func (srv *Server) UpdatePrometheusMetrics() {
	for _, route := range srv.registry.Routes() {
		pattern := route.Prefix
		if route.Suffix != nil {
			pattern = route.Prefix + "*" + *route.Suffix
		}

		labels := prometheus.Labels{"method": route.Method, "pattern": pattern}
		routeRequestsTotal.With(labels).Set(float64(route.RequestCount()))
		routeAvgBytesPerRequest.With(labels).Set(float64(route.EWMABytesPerRequest()))
		routeTotalTimeSeconds.With(labels).Set(route.TotalTime().Seconds())
	}
}
