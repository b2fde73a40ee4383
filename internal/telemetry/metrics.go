package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes.
const (
	OutcomeFinal     = "final"
	OutcomeExhausted = "exhausted"
)

// Tool call statuses beyond the observation statuses.
const (
	ToolStatusError   = "error"
	ToolStatusUnknown = "unknown"
)

// UnknownToolLabel replaces model-chosen names that match no registered tool,
// keeping the tool label bounded.
const UnknownToolLabel = "_unknown"

// Metrics collects Prometheus metrics for the agent. Each Metrics owns its
// registry so tests and multiple agents do not collide.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	iterations      prometheus.Histogram
	toolCalls       *prometheus.CounterVec
	gatewayFailures *prometheus.CounterVec
}

// NewMetrics creates a Metrics collector with process and Go runtime
// collectors registered.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "infraagent_requests_total",
			Help: "Processed requests by outcome.",
		}, []string{"outcome"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "infraagent_iterations",
			Help:    "Model calls used per request.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "infraagent_tool_calls_total",
			Help: "Tool dispatches by tool and status.",
		}, []string{"tool", "status"}),
		gatewayFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "infraagent_gateway_failures_total",
			Help: "Model calls that failed and were replaced with a failure reply.",
		}, []string{"provider"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.iterations,
		m.toolCalls,
		m.gatewayFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordRequest counts a finished request.
func (m *Metrics) RecordRequest(outcome string) {
	m.requests.WithLabelValues(outcome).Inc()
}

// RecordIterations observes the number of model calls a request used.
func (m *Metrics) RecordIterations(n int) {
	m.iterations.Observe(float64(n))
}

// RecordToolCall counts a tool dispatch.
func (m *Metrics) RecordToolCall(tool, status string) {
	m.toolCalls.WithLabelValues(tool, status).Inc()
}

// RecordGatewayFailure counts a failed model call.
func (m *Metrics) RecordGatewayFailure(provider string) {
	m.gatewayFailures.WithLabelValues(provider).Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler serving the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
