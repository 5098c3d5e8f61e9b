package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlaced = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storefront_orders",
			Name:      "orders_placed_total",
			Help:      "Orders committed to the ledger",
		},
	)

	OrdersRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront_orders",
			Name:      "orders_rejected_total",
			Help:      "Order placements rolled back by reason",
		},
		[]string{"reason"},
	)

	OrdersCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storefront_orders",
			Name:      "orders_cancelled_total",
			Help:      "Orders moved to Cancelled",
		},
	)

	CancellationsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront_orders",
			Name:      "cancellations_rejected_total",
			Help:      "Refused cancellations by reason",
		},
		[]string{"reason"},
	)

	SignatureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront_orders",
			Name:      "payment_signature_failures_total",
			Help:      "Payment confirmations and webhooks whose signature did not verify",
		},
		[]string{"source"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront_orders",
			Name:      "webhook_events_total",
			Help:      "Verified gateway webhook events by type",
		},
		[]string{"event"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront_orders",
			Name:      "notifications_failed_total",
			Help:      "Order events or invoices that could not be delivered",
		},
		[]string{"channel"},
	)

	GatewayLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "storefront_orders",
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of payment gateway order creation including retries",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
