package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency. Shared across the server.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "toolgate",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// ToolCallsTotal counts dispatched tool calls by server and outcome.
var ToolCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "toolgate",
		Subsystem: "router",
		Name:      "tool_calls_total",
		Help:      "Total number of tool calls dispatched by the router.",
	},
	[]string{"server_id", "status"},
)

// ToolCallDuration tracks outbound tool call latency.
var ToolCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "toolgate",
		Subsystem: "router",
		Name:      "tool_call_duration_seconds",
		Help:      "Outbound tool call duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
	[]string{"server_id"},
)

// CircuitBreakerState exports the breaker state per server (0=closed, 1=half_open, 2=open).
var CircuitBreakerState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "toolgate",
		Subsystem: "router",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state per server: 0=closed, 1=half_open, 2=open.",
	},
	[]string{"server_id"},
)

// RateLimiterRejectedTotal counts calls denied by the token-bucket limiter.
var RateLimiterRejectedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "toolgate",
		Subsystem: "router",
		Name:      "rate_limiter_rejected_total",
		Help:      "Total number of calls rejected by the per-server rate limiter.",
	},
	[]string{"server_id"},
)

// QuotaRejectedTotal counts requests denied at the ingress quota gate.
var QuotaRejectedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "toolgate",
		Subsystem: "ingress",
		Name:      "quota_rejected_total",
		Help:      "Total number of requests rejected for exceeding tenant quota.",
	},
	[]string{"tenant_id"},
)

// OutboxLag reports the age in seconds of the oldest unsent outbox row.
var OutboxLag = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "toolgate",
		Subsystem: "outbox",
		Name:      "oldest_unsent_age_seconds",
		Help:      "Age in seconds of the oldest unsent metering outbox row.",
	},
)

// OutboxDeadLetteredTotal counts rows that hit the attempts ceiling.
var OutboxDeadLetteredTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "toolgate",
		Subsystem: "outbox",
		Name:      "dead_lettered_total",
		Help:      "Total number of outbox rows dead-lettered after exhausting delivery attempts.",
	},
)

// All returns the gateway-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		ToolCallsTotal,
		ToolCallDuration,
		CircuitBreakerState,
		RateLimiterRejectedTotal,
		QuotaRejectedTotal,
		OutboxLag,
		OutboxDeadLetteredTotal,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process collectors,
// the shared HTTPRequestDuration metric, and any additional collectors.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
