package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibra_llm_requests_total",
			Help: "Total number of LLM provider calls by outcome.",
		},
		[]string{"provider", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vibra_llm_request_duration_seconds",
			Help:    "Duration of LLM provider calls.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"provider"},
	)
)
