package types

import (
	"github.com/shopspring/decimal"
)

// PriceBreakdown is the immutable per-item money record frozen onto an
// order item at placement. FinalPrice is the authoritative refundable
// amount for the line; nothing in the settlement path may recompute it
// from live catalog prices.
type PriceBreakdown struct {
	OriginalPrice    decimal.Decimal `json:"original_price"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	OfferDiscount    decimal.Decimal `json:"offer_discount"`
	OfferTitle       string          `json:"offer_title,omitempty"`
	PriceAfterOffer  decimal.Decimal `json:"price_after_offer"`
	CouponDiscount   decimal.Decimal `json:"coupon_discount"`
	CouponProportion decimal.Decimal `json:"coupon_proportion"`
	FinalPrice       decimal.Decimal `json:"final_price"`
}
