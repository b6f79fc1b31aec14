package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

func TestStorefrontMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStorefrontMetrics(reg)

	m.IncOrderPlaced("cod")
	m.IncOrderPlaced("cod")
	m.IncOrderPlaced("razorpay")
	m.IncCheckoutFailure("payment_verify")
	m.ObserveRefund("cancellation", decimal.NewFromFloat(407.14))

	if got := testutil.ToFloat64(m.ordersPlaced.WithLabelValues("cod")); got != 2 {
		t.Fatalf("expected 2 cod orders, got %v", got)
	}
	if got := testutil.ToFloat64(m.ordersPlaced.WithLabelValues("razorpay")); got != 1 {
		t.Fatalf("expected 1 razorpay order, got %v", got)
	}
	if got := testutil.ToFloat64(m.checkoutFailures.WithLabelValues("payment_verify")); got != 1 {
		t.Fatalf("expected 1 checkout failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.refundsIssued.WithLabelValues("cancellation")); got != 1 {
		t.Fatalf("expected 1 refund, got %v", got)
	}
	if got := testutil.ToFloat64(m.refundAmount.WithLabelValues("cancellation")); got != 407.14 {
		t.Fatalf("expected refund amount 407.14, got %v", got)
	}
}

func TestStorefrontMetricsNilSafe(t *testing.T) {
	var m *StorefrontMetrics
	m.IncOrderPlaced("cod")
	m.IncCheckoutFailure("stock")
	m.ObserveRefund("return", decimal.NewFromInt(10))

	empty := NewStorefrontMetrics(nil)
	empty.IncOrderPlaced("wallet")
}
