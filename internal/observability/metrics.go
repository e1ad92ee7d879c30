package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the bot.
//
// Tracked concerns:
//   - Message flow per channel and direction
//   - Turn pipeline latency and outcome
//   - LLM request counts and durations
//   - Tool execution counts and durations
//   - Session store population and removals by reason
type Metrics struct {
	// MessageCounter tracks messages by channel and direction.
	// Labels: channel (onebot|telegram), direction (inbound|outbound)
	MessageCounter *prometheus.CounterVec

	// TurnDuration measures full turn latency in seconds.
	// Labels: outcome (ok|busy|error|empty|safety)
	TurnDuration *prometheus.HistogramVec

	// LLMRequestCounter counts model invocations.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMRequestDuration measures model invocation latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// ActiveSessions tracks the current session store population.
	ActiveSessions prometheus.Gauge

	// SessionRemovals counts sessions removed from the store.
	// Labels: reason (expired|error|safety|empty|command)
	SessionRemovals *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the default registry.
// Call once at startup.
func NewMetrics() *Metrics {
	return newMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsForRegistry registers metrics with a caller-supplied registry,
// which tests use to avoid duplicate registration.
func NewMetricsForRegistry(reg prometheus.Registerer) *Metrics {
	return newMetricsWith(reg)
}

func newMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessageCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "horizon_messages_total",
				Help: "Total number of messages processed by channel and direction",
			},
			[]string{"channel", "direction"},
		),

		TurnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "horizon_turn_duration_seconds",
				Help:    "Duration of agent turns in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),

		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "horizon_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "horizon_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "horizon_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "horizon_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "horizon_active_sessions",
				Help: "Current number of sessions in the store",
			},
		),

		SessionRemovals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "horizon_session_removals_total",
				Help: "Total number of sessions removed from the store by reason",
			},
			[]string{"reason"},
		),
	}
}

// ObserveTurn records a completed turn with its outcome.
func (m *Metrics) ObserveTurn(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TurnDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// Serve exposes /metrics on the given address. Blocks until the server stops.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
