package refunds

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

// Decision is the outcome of the refund gate for one cancel/return.
// When ShouldRefund is false and FailPayment is true, no money ever
// changed hands (COD never collected) and the payment status moves to
// failed instead of refunded.
type Decision struct {
	ShouldRefund bool
	Amount       decimal.Decimal
	FailPayment  bool
}

// Calculator computes exact refund amounts from frozen breakdowns and
// gates them on payment method and status.
type Calculator struct {
	logg *logger.Logger
}

// NewCalculator builds the refund calculator.
func NewCalculator(logg *logger.Logger) (*Calculator, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Calculator{logg: logg}, nil
}

// ExactRefund returns the amount owed back for one item. A single-item
// order refunds the full order total (tax and shipping belong to no one
// else); in a multi-item order only the item's frozen finalPrice comes
// back. Never recomputed from live prices.
func ExactRefund(item *models.OrderItem, order *models.Order) decimal.Decimal {
	if order == nil || item == nil {
		return decimal.Zero
	}
	if len(order.Items) == 1 {
		return order.Total
	}
	return item.PriceBreakdown.FinalPrice
}

// Decide applies the exact-refund rule and the eligibility gate, clamping
// the amount at the order's unrefunded remainder. A clamp indicates a
// bookkeeping bug upstream, so it logs loudly but still proceeds.
func (c *Calculator) Decide(ctx context.Context, order *models.Order, item *models.OrderItem) Decision {
	amount := ExactRefund(item, order)
	return c.decide(ctx, order, amount)
}

// DecideWholeOrder gates a full-order refund of the unrefunded remainder.
func (c *Calculator) DecideWholeOrder(ctx context.Context, order *models.Order) Decision {
	if order == nil {
		return Decision{}
	}
	return c.decide(ctx, order, order.Total.Sub(order.RefundedTotal))
}

func (c *Calculator) decide(ctx context.Context, order *models.Order, amount decimal.Decimal) Decision {
	if order == nil || amount.Sign() <= 0 {
		return Decision{}
	}

	remaining := order.Total.Sub(order.RefundedTotal)
	if amount.GreaterThan(remaining) {
		ctx = c.logg.WithFields(ctx, map[string]any{
			"order_id":  order.ID.String(),
			"requested": amount.StringFixed(2),
			"remaining": remaining.StringFixed(2),
		})
		c.logg.Error(ctx, "refund exceeds unrefunded order total, clamping", nil)
		amount = remaining
	}
	if amount.Sign() <= 0 {
		return Decision{}
	}

	if order.PaymentMethod == enums.PaymentMethodCOD {
		collected := order.Status == enums.OrderStatusDelivered || order.PaymentStatus == enums.PaymentStatusPaid
		if !collected {
			// Cash never collected: nothing to give back.
			return Decision{FailPayment: true}
		}
		return Decision{ShouldRefund: true, Amount: amount}
	}

	switch order.PaymentStatus {
	case enums.PaymentStatusPaid, enums.PaymentStatusPartiallyRefunded:
		return Decision{ShouldRefund: true, Amount: amount}
	default:
		return Decision{}
	}
}
