package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики системы. Регистрируются в default registry,
// экспортируются каждым сервисом на /metrics.
var (
	// JobsSubmitted — принятые admission control'ом jobs.
	JobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cascade_jobs_submitted_total",
		Help: "Jobs admitted and created in the store",
	})

	// AdmissionRejected — запросы, отклонённые по лимиту активных jobs.
	AdmissionRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cascade_admission_rejected_total",
		Help: "Submissions rejected by the per-user concurrency limit",
	})

	// JobsCompleted — jobs, завершённые по итоговому статусу.
	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_jobs_finished_total",
		Help: "Jobs driven to a terminal status",
	}, []string{"status"})

	// ActiveJobs — jobs, которые оркестратор ведёт прямо сейчас.
	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cascade_active_jobs",
		Help: "Workflow runs currently driven by this orchestrator",
	})

	// SubtaskDuration — длительность выполнения subtask на worker'е.
	SubtaskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cascade_subtask_duration_seconds",
		Help:    "Wall time of subtask execution on workers",
		Buckets: prometheus.DefBuckets,
	})

	// MessagesConsumed — успешно обработанные и подтверждённые сообщения.
	MessagesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_mq_messages_consumed_total",
		Help: "Messages handled and acked per queue",
	}, []string{"queue"})

	// MessagesDeadLettered — сообщения, отклонённые без requeue.
	MessagesDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_mq_messages_dead_lettered_total",
		Help: "Messages rejected to the dead letter exchange",
	}, []string{"queue", "reason"})

	// StaleJobsReconciled — jobs, подхваченные reconciler'ом.
	StaleJobsReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_stale_jobs_reconciled_total",
		Help: "Jobs picked up by the reconciliation sweep",
	}, []string{"action"})
)
