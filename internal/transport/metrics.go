package transport

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the counters/gauges served at GET /metrics. The tool-call
// series are fed through Observe; nothing in this tree updates
// SSESubscribers. client_golang is the teacher's
// direct dependency (server/go.mod) that the copied arkeep tree never
// actually wired into a /metrics endpoint — MASC is a better fit for
// it, since every tool call and SSE subscriber is a natural metric.
type Metrics struct {
	ToolCallsTotal   *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec
	SSESubscribers   prometheus.Gauge
	InFlightCalls    prometheus.GaugeFunc
}

// NewMetrics registers every MASC metric against a dedicated registry
// (not the global default, so tests can construct independent
// instances without colliding on re-registration).
func NewMetrics(reg *prometheus.Registry, inFlight func() float64) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ToolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "masc",
			Name:      "tool_calls_total",
			Help:      "Total tool calls dispatched, by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		ToolCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "masc",
			Name:      "tool_call_duration_seconds",
			Help:      "Tool call handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		SSESubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "masc",
			Name:      "sse_subscribers",
			Help:      "Currently connected SSE subscribers.",
		}),
		InFlightCalls: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "masc",
			Name:      "tool_calls_in_flight",
			Help:      "Tool calls currently registered in the drain gate.",
		}, inFlight),
	}
}

// Observe records one completed call's outcome and duration.
func (m *Metrics) Observe(tool string, success bool, seconds float64) {
	outcome := "error"
	if success {
		outcome = "success"
	}
	m.ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(seconds)
}

// MetricsHandlerFor serves /metrics against reg, the same registry
// passed to NewMetrics, so every masc_* series shows up. No process
// or Go runtime collectors are registered on reg.
func MetricsHandlerFor(reg *prometheus.Registry) http.HandlerFunc {
	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return h.ServeHTTP
}
