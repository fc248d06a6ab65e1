// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RouteDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrrp_route_decisions_total",
			Help: "Routing decisions by approach",
		},
		[]string{"approach"},
	)

	QueryExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrrp_query_executions_total",
			Help: "Warehouse query executions by query name and status",
		},
		[]string{"query", "status"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrrp_query_duration_seconds",
			Help:    "Warehouse query latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrrp_llm_calls_total",
			Help: "Language model calls by pipeline stage and status",
		},
		[]string{"stage", "status"},
	)

	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrrp_llm_duration_seconds",
			Help:    "Language model call latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"stage"},
	)

	Clarifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrrp_clarifications_total",
			Help: "Clarification outcomes (opened, affirmed, resolved, follow_up, exhausted)",
		},
		[]string{"outcome"},
	)

	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qrrp_streams_active",
			Help: "Number of event streams currently open",
		},
	)
)
