package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obimo_llm_requests_total",
			Help: "Ranking model requests by result",
		},
		[]string{"result"},
	)

	requestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "obimo_llm_request_duration_seconds",
			Help:    "Ranking model request latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	// 0 closed, 1 half-open, 2 open
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "obimo_llm_circuit_breaker_state",
			Help: "Circuit breaker state of the ranking model client",
		},
		[]string{"breaker"},
	)
)
