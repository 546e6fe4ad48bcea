package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Total number of webhook deliveries by outcome",
	}, []string{"outcome"})

	WebhookSignatureFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_signature_failures_total",
		Help: "Total number of webhook deliveries rejected for bad signatures",
	})

	WebhookDispatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webhook_dispatch_latency_seconds",
		Help:    "Latency of webhook event dispatch",
		Buckets: prometheus.DefBuckets,
	})

	PreorderDeltasApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "preorder_deltas_applied_total",
		Help: "Total number of preorder quantity deltas applied",
	})

	PreorderDeltasDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "preorder_deltas_deduped_total",
		Help: "Total number of preorder deltas short-circuited by the idempotency ledger",
	})

	PreorderCapacityRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "preorder_capacity_rejections_total",
		Help: "Total number of preorder deltas rejected for exceeding capacity",
	})

	PaymentsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_created_total",
		Help: "Total number of payments created through checkout completion",
	})

	PaymentsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_failed_total",
		Help: "Total number of failed payment creations",
	}, []string{"reason"})

	PaymentChargeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_charge_latency_seconds",
		Help:    "Latency of synchronous checkout charge calls",
		Buckets: prometheus.DefBuckets,
	})

	InventoryBatchesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_batches_submitted_total",
		Help: "Total number of inventory adjustment batches submitted to the provider",
	})

	InventoryBatchesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_batches_failed_total",
		Help: "Total number of inventory adjustment batches the provider rejected",
	})

	InventoryResyncRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_resync_retries_total",
		Help: "Total number of inventory finalizations retried by the resync worker",
	})

	InventoryResyncDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_resync_dropped_total",
		Help: "Total number of inventory resync events dropped after max attempts",
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
