package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	itemsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibra_queue_items_enqueued_total",
			Help: "Queue items created per trigger event.",
		},
		[]string{"event"},
	)

	itemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibra_queue_items_processed_total",
			Help: "Processing attempts by outcome.",
		},
		[]string{"outcome"},
	)

	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vibra_llm_cache_hits_total",
			Help: "Retries that reused a cached LLM response instead of a paid call.",
		},
	)

	notificationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vibra_notification_failures_total",
			Help: "Notifications that could not be created.",
		},
	)

	processingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vibra_item_processing_duration_seconds",
			Help:    "End to end duration of successful item processing.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
)
