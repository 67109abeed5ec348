package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_gate_decisions_total",
			Help: "Total number of usage gate decisions",
		},
		[]string{"action", "outcome"},
	)

	ForwardRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_forward_requests_total",
			Help: "Total number of forwarded downstream requests",
		},
		[]string{"action", "result"},
	)

	ForwardDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_forward_duration_seconds",
			Help:    "Duration of downstream calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	CommitFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_usage_commit_failures_total",
			Help: "Total number of usage commits that failed after a successful forward",
		},
		[]string{"action"},
	)

	BillingEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_billing_events_total",
			Help: "Total number of payment provider webhook events",
		},
		[]string{"type", "result"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_rate_limited_total",
			Help: "Total number of requests rejected by the burst limiter",
		},
	)
)
