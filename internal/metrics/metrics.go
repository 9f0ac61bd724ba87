// Package metrics provides Prometheus metrics for the balancer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectAttemptsTotal counts connection attempts by outcome.
	ConnectAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keeper_lb_connect_attempts_total",
		Help: "Total connection attempts by result",
	}, []string{"balancer", "result"})

	// DNSFailures counts DNS pre-check failures by kind.
	DNSFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keeper_lb_dns_failures_total",
		Help: "Total DNS pre-check failures",
	}, []string{"kind"})

	// SelectionsTotal counts endpoint selections by session lifetime hint.
	SelectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keeper_lb_selections_total",
		Help: "Total endpoint selections by the balancer",
	}, []string{"balancer", "endpoint", "lifetime"})

	// EndpointStatus tracks the current status per endpoint
	// (0 undef, 1 online, 2 offline).
	EndpointStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "keeper_lb_endpoint_status",
		Help: "Current endpoint status (0 undef, 1 online, 2 offline)",
	}, []string{"balancer", "endpoint"})

	// ExhaustedTotal counts times every endpoint was unavailable and
	// offline statuses were reset.
	ExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keeper_lb_exhausted_total",
		Help: "Times all endpoints were exhausted and statuses reset",
	}, []string{"balancer"})

	// BetterHostRetriesTotal counts sessions discarded because a better
	// endpoint was online.
	BetterHostRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keeper_lb_better_host_retries_total",
		Help: "Sessions discarded in favor of a better endpoint",
	}, []string{"balancer"})

	// SessionCreateDuration tracks session establishment duration in seconds.
	SessionCreateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keeper_lb_session_create_seconds",
		Help:    "Session establishment duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"balancer"})
)
