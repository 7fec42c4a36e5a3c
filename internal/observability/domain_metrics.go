package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Turn outcomes used as the outcome label on sqlassist_turns_total.
const (
	OutcomeSuccess   = "success"
	OutcomeRefused   = "refused"
	OutcomeLLMError  = "llm_error"
	OutcomeExecError = "exec_error"
	OutcomeConfig    = "config_error"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlassist_turns_total",
			Help: "Total number of conversation turns by outcome.",
		},
		[]string{"outcome"},
	)
	gateRefusalsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlassist_gate_refusals_total",
			Help: "Total number of mutating requests refused for missing confirmation.",
		},
	)
	statementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlassist_statements_total",
			Help: "Total number of executed statements by kind.",
		},
		[]string{"kind"},
	)
	schemaFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlassist_schema_fallbacks_total",
			Help: "Total number of turns that used the static fallback schema.",
		},
	)
	llmLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlassist_llm_latency_ms",
			Help:    "Language model completion latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000},
		},
	)
	turnLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlassist_turn_latency_ms",
			Help:    "End-to-end turn latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000},
		},
	)
)

func init() {
	prometheus.MustRegister(
		turnsTotal,
		gateRefusalsTotal,
		statementsTotal,
		schemaFallbacksTotal,
		llmLatencyMs,
		turnLatencyMs,
	)
}

func ObserveTurn(outcome string, elapsed time.Duration) {
	turnsTotal.WithLabelValues(outcome).Inc()
	turnLatencyMs.Observe(float64(elapsed.Milliseconds()))
	if outcome == OutcomeRefused {
		gateRefusalsTotal.Inc()
	}
}

func ObserveLLMLatency(elapsed time.Duration) {
	llmLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func IncrementStatements(kind string) {
	statementsTotal.WithLabelValues(kind).Inc()
}

func IncrementSchemaFallback() {
	schemaFallbacksTotal.Inc()
}
