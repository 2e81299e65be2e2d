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

	AuditRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leak_audit_runs_total",
			Help: "Leak audits by provider and outcome",
		},
		[]string{"provider", "status"},
	)

	AuditDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leak_audit_duration_seconds",
			Help:    "Time spent scoring a snapshot",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"provider"},
	)

	LeaksDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leak_audit_leaks_detected_total",
			Help: "Leaks surfaced by audits, by severity",
		},
		[]string{"severity"},
	)

	RevenueAtRisk = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leak_audit_revenue_at_risk",
			Help: "Total revenue at risk from the latest audit per provider",
		},
		[]string{"provider"},
	)

	SideEffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leak_audit_side_effect_failures_total",
			Help: "Persist, cache and index failures after an audit",
		},
		[]string{"effect"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request latency by route",
		},
		[]string{"route", "method"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leak_alert_notifications_total",
			Help: "Alert notifications by channel and outcome",
		},
		[]string{"channel", "status"},
	)
)
