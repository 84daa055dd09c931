package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersReconciledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_reconciled_total",
		Help: "Total number of new orders created from payment confirmations",
	})

	DuplicateConfirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_duplicate_confirmations_total",
		Help: "Total number of payment confirmations rejected as duplicates",
	}, []string{"match"})

	IssuancesScheduledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "issuances_scheduled_total",
		Help: "Total number of scheduled issuances created",
	})

	PassesIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "passes_issued_total",
		Help: "Total number of passes issued",
	}, []string{"origin"})

	IssuanceFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "issuance_failed_total",
		Help: "Total number of failed issuance attempts",
	}, []string{"reason"})

	ClaimConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "issuance_claim_conflicts_total",
		Help: "Total number of claim attempts that lost to a concurrent claim",
	})

	ClaimedWithoutPass = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "issuance_claimed_without_pass",
		Help: "Scheduled issuances marked processed with no created pass (operator attention required)",
	})

	SweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_runs_total",
		Help: "Total number of fallback sweep executions",
	})

	SweepProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_processed_total",
		Help: "Total number of overdue issuances processed by the sweep",
	})

	SweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_errors_total",
		Help: "Total number of overdue issuances the sweep failed to process",
	})

	NotificationsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of welcome emails delivered to the mail transport",
	})

	NotificationsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Total number of welcome email attempts that failed",
	})

	DispatchEnqueueFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_enqueue_failed_total",
		Help: "Total number of failed enqueues to the delayed-dispatch service",
	})

	IssuanceProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "issuance_processing_latency_seconds",
		Help:    "Latency of the claim-issue-notify sequence",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
