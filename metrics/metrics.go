// Package metrics exposes Prometheus instrumentation for the orchestrator:
// request counts by routing target and outcome, end-to-end latency, stage
// latency, tool call outcomes, token usage and spend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the orchestrator's collectors. Create one per process and
// share it across requests.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	StageDuration   *prometheus.HistogramVec
	ToolCallsTotal  *prometheus.CounterVec
	TokensTotal     *prometheus.CounterVec
	CostTotal       prometheus.Counter
	DiscussionTurns prometheus.Histogram
}

// New registers the collectors on the given registerer (use
// prometheus.DefaultRegisterer in production, a fresh registry in tests).
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_orchestrator_requests_total",
			Help: "Orchestration requests by routing target and outcome.",
		}, []string{"target", "outcome"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scribe_orchestrator_request_duration_seconds",
			Help:    "End to end request latency.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"target"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scribe_orchestrator_stage_duration_seconds",
			Help:    "Per workflow stage latency.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"stage"}),
		ToolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_tool_calls_total",
			Help: "Tool invocations by tool name and status.",
		}, []string{"tool", "status"}),
		TokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_model_tokens_total",
			Help: "Model tokens consumed by direction.",
		}, []string{"direction"}),
		CostTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_model_cost_usd_total",
			Help: "Cumulative model spend in USD.",
		}),
		DiscussionTurns: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scribe_discussion_turns",
			Help:    "Transcript length of completed discussions.",
			Buckets: prometheus.LinearBuckets(0, 1, 12),
		}),
	}
}

// NewUnregistered returns metrics backed by a private registry, for tests and
// for callers that do not scrape.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
