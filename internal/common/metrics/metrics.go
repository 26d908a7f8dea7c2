// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	GenerationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_generation_attempts_total",
			Help: "Document generation attempts by outcome",
		},
		[]string{"outcome"},
	)

	GenerationRetriesScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "document_generation_retries_scheduled_total",
			Help: "Retries scheduled after transient generation failures",
		},
	)

	GenerationJobsCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "document_generation_jobs_cancelled_total",
			Help: "Generation jobs cancelled before an attempt started",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Outcome notifications sent by channel and status",
		},
		[]string{"channel", "status"},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Webhook delivery attempts by result",
		},
		[]string{"result"},
	)
)
