package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradeflow_webhooks_total",
			Help: "Total number of webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	ReplayRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gradeflow_replay_rejections_total",
			Help: "Webhook deliveries rejected by the replay guard",
		},
	)

	GradesApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gradeflow_grades_applied_total",
			Help: "Total number of committed grade writes",
		},
	)

	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradeflow_webhook_retries_total",
			Help: "Failed webhook reprocessing attempts by result",
		},
		[]string{"result"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gradeflow_pipeline_duration_seconds",
			Help:    "End-to-end webhook pipeline duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
	)
)
