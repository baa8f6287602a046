package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the security pipeline and provider performance:
//   - Tool executions, blocks, and access denials by tool name
//   - Verification gate decisions by choice
//   - LLM request latency and status by provider and model
//   - Agent handoffs
type Metrics struct {
	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolBlockedCounter counts tool calls rejected by security policy.
	// Labels: tool_name, reason (blocked|access_denied)
	ToolBlockedCounter *prometheus.CounterVec

	// VerificationDecisionCounter counts gate outcomes.
	// Labels: choice (y|n|e|auto_approved|interrupted)
	VerificationDecisionCounter *prometheus.CounterVec

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider (anthropic|openai), model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider and model.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// HandoffCounter counts agent delegations.
	// Labels: from_agent, to_agent
	HandoffCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics. A nil registerer
// uses the default registry; tests pass their own prometheus.NewRegistry()
// so repeated construction does not panic on duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aegis_tool_executions_total",
				Help: "Total number of tool executions by tool and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolBlockedCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aegis_tool_blocked_total",
				Help: "Total number of tool calls rejected by security policy",
			},
			[]string{"tool_name", "reason"},
		),

		VerificationDecisionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aegis_verification_decisions_total",
				Help: "Total number of verification gate decisions by choice",
			},
			[]string{"choice"},
		),

		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aegis_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aegis_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		HandoffCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aegis_agent_handoffs_total",
				Help: "Total number of agent delegations",
			},
			[]string{"from_agent", "to_agent"},
		),
	}
}
