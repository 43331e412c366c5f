package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PaymentMetrics tracks checkout and reconciliation outcomes.
type PaymentMetrics struct {
	SessionsCreated       *prometheus.CounterVec
	SessionAmount         prometheus.Counter
	GatewayLatency        *prometheus.HistogramVec
	WebhookOutcomes       *prometheus.CounterVec
	SignatureFailures     prometheus.Counter
	DuplicateTokens       prometheus.Counter
	AmountMismatches      prometheus.Counter
	OrdersPaidAmount      prometheus.Counter
	NotificationsSent     *prometheus.CounterVec
	TransferOrdersCreated prometheus.Counter
}

// NewPaymentMetrics registers the collectors on reg. Pass prometheus.DefaultRegisterer in production.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	f := promauto.With(reg)
	return &PaymentMetrics{
		SessionsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_payment_sessions_total",
			Help: "Payment session attempts by result",
		}, []string{"result"}),
		SessionAmount: f.NewCounter(prometheus.CounterOpts{
			Name: "storefront_payment_sessions_amount_total",
			Help: "Sum of quoted totals for created payment sessions",
		}),
		GatewayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_gateway_request_duration_ms",
			Help:    "Latency of payment gateway calls in ms",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3200, 6400},
		}, []string{"operation"}),
		WebhookOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_webhook_outcomes_total",
			Help: "Gateway confirmations by outcome and reason",
		}, []string{"outcome", "reason"}),
		SignatureFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "storefront_webhook_signature_failures_total",
			Help: "Confirmations rejected for an invalid signature",
		}),
		DuplicateTokens: f.NewCounter(prometheus.CounterOpts{
			Name: "storefront_webhook_duplicate_tokens_total",
			Help: "Confirmations rejected as replays",
		}),
		AmountMismatches: f.NewCounter(prometheus.CounterOpts{
			Name: "storefront_amount_mismatches_total",
			Help: "Orders parked in AMOUNT_MISMATCH",
		}),
		OrdersPaidAmount: f.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_paid_amount_total",
			Help: "Sum of totals of orders moved to PAID",
		}),
		NotificationsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_notifications_total",
			Help: "Outgoing emails by kind and result",
		}, []string{"kind", "result"}),
		TransferOrdersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "storefront_transfer_orders_total",
			Help: "Bank transfer orders created",
		}),
	}
}
