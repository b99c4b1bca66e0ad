package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PurchasesInitiatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_initiated_total",
		Help: "Total number of purchase initiations that created a pending ticket",
	})

	PurchasesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchases_rejected_total",
		Help: "Total number of rejected purchase initiations",
	}, []string{"reason"})

	TicketsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickets_confirmed_total",
		Help: "Total number of tickets confirmed",
	})

	TicketsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tickets_failed_total",
		Help: "Total number of tickets that reached the failed state",
	}, []string{"reason"})

	DuplicateOutcomesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_duplicate_outcomes_total",
		Help: "Total number of payment outcomes acknowledged as no-ops on terminal tickets",
	})

	OutcomeProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_outcome_latency_seconds",
		Help:    "Latency of payment outcome processing",
		Buckets: prometheus.DefBuckets,
	})

	ProviderStatusQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_status_queries_total",
		Help: "Total number of server-to-server status queries against the payment provider",
	}, []string{"result"})

	TicketsScannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickets_scanned_total",
		Help: "Total number of tickets admitted at the door",
	})

	ScanRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticket_scan_rejections_total",
		Help: "Total number of rejected verification attempts",
	}, []string{"reason"})

	PendingTicketsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pending_tickets_expired_total",
		Help: "Total number of pending tickets failed by the expiry sweep",
	})

	TicketEmailsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticket_emails_sent_total",
		Help: "Total number of ticket delivery emails sent",
	})

	TicketEmailsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticket_emails_failed_total",
		Help: "Total number of ticket delivery emails that failed to send",
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
