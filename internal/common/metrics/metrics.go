// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_queries_total",
			Help: "Total number of orchestrated queries by intent and outcome",
		},
		[]string{"intent", "status"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insight_query_duration_seconds",
			Help:    "End-to-end query processing time in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"intent"},
	)

	AgentRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_agent_runs_total",
			Help: "Total number of agent invocations by agent and outcome",
		},
		[]string{"agent", "status"},
	)

	LLMAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_llm_attempts_total",
			Help: "Language model HTTP attempts by outcome",
		},
		[]string{"outcome"},
	)

	PlanRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_plan_rejections_total",
			Help: "Inferred plans rejected before execution",
		},
		[]string{"agent", "reason"},
	)

	QueriesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "insight_queries_in_flight",
			Help: "Number of queries currently being processed",
		},
	)
)

// Status maps a success flag to the status label value.
func Status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
