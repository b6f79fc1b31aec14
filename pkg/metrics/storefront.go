package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// StorefrontMetrics records order and refund activity for the API.
type StorefrontMetrics struct {
	ordersPlaced     *prometheus.CounterVec
	checkoutFailures *prometheus.CounterVec
	refundsIssued    *prometheus.CounterVec
	refundAmount     *prometheus.CounterVec
}

// NewStorefrontMetrics registers the storefront metrics on the provided registerer.
func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	ordersPlaced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders placed, by payment method.",
	}, []string{"payment_method"})
	checkoutFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failures_total",
		Help: "Checkout attempts that failed, by stage.",
	}, []string{"stage"})
	refundsIssued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refunds_issued_total",
		Help: "Wallet refunds issued, by kind.",
	}, []string{"kind"})
	refundAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_amount_total",
		Help: "Total refunded amount in rupees, by kind.",
	}, []string{"kind"})
	reg.MustRegister(ordersPlaced, checkoutFailures, refundsIssued, refundAmount)
	return &StorefrontMetrics{
		ordersPlaced:     ordersPlaced,
		checkoutFailures: checkoutFailures,
		refundsIssued:    refundsIssued,
		refundAmount:     refundAmount,
	}
}

// IncOrderPlaced counts a placed order for the given payment method.
func (m *StorefrontMetrics) IncOrderPlaced(paymentMethod string) {
	if m == nil || m.ordersPlaced == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
}

// IncCheckoutFailure counts a failed checkout at the named stage.
func (m *StorefrontMetrics) IncCheckoutFailure(stage string) {
	if m == nil || m.checkoutFailures == nil {
		return
	}
	m.checkoutFailures.WithLabelValues(normalizeLabel(stage)).Inc()
}

// ObserveRefund counts a refund and accumulates its amount.
func (m *StorefrontMetrics) ObserveRefund(kind string, amount decimal.Decimal) {
	if m == nil || m.refundsIssued == nil {
		return
	}
	label := normalizeLabel(kind)
	m.refundsIssued.WithLabelValues(label).Inc()
	f, _ := amount.Float64()
	m.refundAmount.WithLabelValues(label).Add(f)
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
