package coupons

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
)

var oneHundred = decimal.NewFromInt(100)

// LineItem is a priced cart line the allocator splits a coupon across.
// DiscountedPrice is the post-offer unit price.
type LineItem struct {
	ProductID       uuid.UUID
	DiscountedPrice decimal.Decimal
	Quantity        int
}

// ItemDiscount is one item's share of the coupon.
type ItemDiscount struct {
	Amount     decimal.Decimal
	Proportion decimal.Decimal
}

// Allocation is the result of distributing a coupon across line items.
// TotalDiscount is the sum of the rounded per-item amounts, so the split
// and the aggregate always agree exactly.
type Allocation struct {
	TotalDiscount decimal.Decimal
	ItemDiscounts map[uuid.UUID]ItemDiscount
}

// Allocate distributes the coupon's discount across items in proportion
// to each item's share of the post-offer cart total. Per-item amounts are
// rounded to 2 decimals and capped at the item's own line value.
func Allocate(coupon *models.Coupon, items []LineItem) Allocation {
	alloc := Allocation{
		TotalDiscount: decimal.Zero,
		ItemDiscounts: make(map[uuid.UUID]ItemDiscount, len(items)),
	}
	if coupon == nil || len(items) == 0 {
		return alloc
	}

	cartTotal := decimal.Zero
	lineTotals := make([]decimal.Decimal, len(items))
	for i, item := range items {
		lineTotals[i] = item.DiscountedPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		cartTotal = cartTotal.Add(lineTotals[i])
	}
	if cartTotal.Sign() <= 0 {
		return alloc
	}

	target := discountFor(coupon, cartTotal)
	if target.Sign() <= 0 {
		return alloc
	}

	sum := decimal.Zero
	for i, item := range items {
		proportion := lineTotals[i].Div(cartTotal)
		amount := target.Mul(proportion).Round(2)
		if amount.GreaterThan(lineTotals[i]) {
			amount = lineTotals[i].Round(2)
		}
		alloc.ItemDiscounts[item.ProductID] = ItemDiscount{
			Amount:     amount,
			Proportion: proportion,
		}
		sum = sum.Add(amount)
	}

	alloc.TotalDiscount = sum
	return alloc
}

// discountFor computes the coupon's pre-allocation discount at a cart
// total: percentage capped by MaxDiscount when set, fixed capped at the
// cart total.
func discountFor(coupon *models.Coupon, cartTotal decimal.Decimal) decimal.Decimal {
	switch coupon.Kind {
	case enums.DiscountKindPercentage:
		amount := cartTotal.Mul(coupon.Value).Div(oneHundred)
		if coupon.MaxDiscount != nil && amount.GreaterThan(*coupon.MaxDiscount) {
			amount = *coupon.MaxDiscount
		}
		return amount
	case enums.DiscountKindFixed:
		if coupon.Value.GreaterThan(cartTotal) {
			return cartTotal
		}
		return coupon.Value
	default:
		return decimal.Zero
	}
}
