// Package metrics defines Prometheus metrics for the canvas daemon.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "canvas_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "canvas_websocket_connections",
			Help: "Active canvas sessions",
		},
	)

	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_mutations_total",
			Help: "Graph mutations by operation and result",
		},
		[]string{"op", "result"},
	)

	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "canvas_collaborator_requests_in_flight",
			Help: "Data collaborator requests awaiting resolution",
		},
	)

	NodeCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "canvas_graph_nodes",
			Help: "Node count of the last propagated canvas graph",
		},
	)

	RelationshipCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "canvas_graph_relationships",
			Help: "Relationship count of the last propagated canvas graph",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		WSConnections, MutationsTotal, InFlightRequests,
		NodeCount, RelationshipCount,
	)
}
