package pricing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven-backend/internal/coupons"
	"github.com/bookhaven/bookhaven-backend/internal/offers"
	"github.com/bookhaven/bookhaven-backend/pkg/config"
	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/types"
)

var oneHundred = decimal.NewFromInt(100)

type offerEngine interface {
	BestOfferFor(ctx context.Context, productID, categoryID uuid.UUID, price decimal.Decimal) *offers.Quote
}

type eligibilityChecker interface {
	CheckEligibility(ctx context.Context, coupon *models.Coupon, userID uuid.UUID, cartTotal decimal.Decimal) error
}

// BuildItem is one cart line entering the builder: the product snapshot
// price and quantity, plus identity for offer matching.
type BuildItem struct {
	ProductID  uuid.UUID
	CategoryID uuid.UUID
	Title      string
	ImageURL   *string
	UnitPrice  decimal.Decimal
	Quantity   int
}

// BuildInput carries everything the builder needs; the coupon is optional
// and is skipped (not failed) when its preconditions no longer hold.
type BuildInput struct {
	UserID uuid.UUID
	Items  []BuildItem
	Coupon *models.Coupon
}

// ItemQuote is the per-line output: unit prices plus the frozen breakdown
// that will be stored on the order item verbatim.
type ItemQuote struct {
	ProductID       uuid.UUID
	CategoryID      uuid.UUID
	Title           string
	ImageURL        *string
	OriginalPrice   decimal.Decimal
	DiscountedPrice decimal.Decimal
	Quantity        int
	Breakdown       types.PriceBreakdown
}

// Quote is the full priced basket. The same inputs always produce the
// same Quote; checkout preview and order placement both call Build.
type Quote struct {
	Items          []ItemQuote
	Subtotal       decimal.Decimal
	OfferDiscount  decimal.Decimal
	CouponID       *uuid.UUID
	CouponCode     *string
	CouponDiscount decimal.Decimal
	Tax            decimal.Decimal
	Shipping       decimal.Decimal
	Total          decimal.Decimal
}

// Builder composes the discount engine and coupon allocator into the
// canonical per-item breakdown and order totals.
type Builder interface {
	Build(ctx context.Context, input BuildInput) (*Quote, error)
}

type builder struct {
	offers      offerEngine
	eligibility eligibilityChecker
	cfg         config.CheckoutConfig
	logg        *logger.Logger
}

// NewBuilder wires the price breakdown builder.
func NewBuilder(offerSvc offerEngine, eligibility eligibilityChecker, cfg config.CheckoutConfig, logg *logger.Logger) (Builder, error) {
	if offerSvc == nil {
		return nil, fmt.Errorf("offer engine required")
	}
	if eligibility == nil {
		return nil, fmt.Errorf("eligibility checker required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &builder{offers: offerSvc, eligibility: eligibility, cfg: cfg, logg: logg}, nil
}

func (b *builder) Build(ctx context.Context, input BuildInput) (*Quote, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot price an empty basket")
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if item.UnitPrice.Sign() < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item price cannot be negative")
		}
	}

	quote := &Quote{Items: make([]ItemQuote, 0, len(input.Items))}

	// Pass 1: offers per item, post-offer subtotal.
	subtotal := decimal.Zero
	offerDiscountTotal := decimal.Zero
	allocItems := make([]coupons.LineItem, 0, len(input.Items))
	for _, item := range input.Items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		unit := item.UnitPrice
		discounted := unit
		offerTitle := ""
		unitDiscount := decimal.Zero

		if offerQuote := b.offers.BestOfferFor(ctx, item.ProductID, item.CategoryID, unit); offerQuote != nil {
			discounted = offerQuote.FinalPrice
			unitDiscount = offerQuote.DiscountAmount
			offerTitle = offerQuote.Offer.Title
		}

		lineOriginal := unit.Mul(qty).Round(2)
		lineAfterOffer := discounted.Mul(qty).Round(2)
		lineOfferDiscount := unitDiscount.Mul(qty).Round(2)

		quote.Items = append(quote.Items, ItemQuote{
			ProductID:       item.ProductID,
			CategoryID:      item.CategoryID,
			Title:           item.Title,
			ImageURL:        item.ImageURL,
			OriginalPrice:   unit,
			DiscountedPrice: discounted,
			Quantity:        item.Quantity,
			Breakdown: types.PriceBreakdown{
				OriginalPrice:   unit,
				Subtotal:        lineOriginal,
				OfferDiscount:   lineOfferDiscount,
				OfferTitle:      offerTitle,
				PriceAfterOffer: lineAfterOffer,
			},
		})

		subtotal = subtotal.Add(lineAfterOffer)
		offerDiscountTotal = offerDiscountTotal.Add(lineOfferDiscount)
		allocItems = append(allocItems, coupons.LineItem{
			ProductID:       item.ProductID,
			DiscountedPrice: discounted,
			Quantity:        item.Quantity,
		})
	}

	// Pass 2: coupon allocation, skipped when preconditions fail.
	couponDiscount := decimal.Zero
	if input.Coupon != nil {
		if err := b.eligibility.CheckEligibility(ctx, input.Coupon, input.UserID, subtotal); err != nil {
			if de := pkgerrors.As(err); de != nil && de.Code() == pkgerrors.CodeValidation {
				b.logg.Info(b.logg.WithField(ctx, "coupon_code", input.Coupon.Code),
					"applied coupon no longer eligible, pricing without it")
			} else {
				return nil, err
			}
		} else {
			alloc := coupons.Allocate(input.Coupon, allocItems)
			couponDiscount = alloc.TotalDiscount
			for i := range quote.Items {
				share, ok := alloc.ItemDiscounts[quote.Items[i].ProductID]
				if !ok {
					continue
				}
				quote.Items[i].Breakdown.CouponDiscount = share.Amount
				quote.Items[i].Breakdown.CouponProportion = share.Proportion.Round(6)
			}
			couponID := input.Coupon.ID
			code := input.Coupon.Code
			quote.CouponID = &couponID
			quote.CouponCode = &code
		}
	}

	// Per-item final price: post-offer line value minus its coupon share.
	for i := range quote.Items {
		bd := &quote.Items[i].Breakdown
		bd.FinalPrice = bd.PriceAfterOffer.Sub(bd.CouponDiscount).Round(2)
	}

	// Delivery is free above the threshold; the threshold reads the
	// pre-coupon (post-offer) subtotal.
	shipping := decimal.Zero
	if subtotal.LessThan(b.cfg.FreeDeliveryThreshold) {
		shipping = b.cfg.DeliveryFee
	}

	tax := subtotal.Sub(couponDiscount).Mul(b.cfg.TaxRatePercent).Div(oneHundred).Round(2)
	total := subtotal.Sub(couponDiscount).Add(tax).Add(shipping).Round(2)

	quote.Subtotal = subtotal
	quote.OfferDiscount = offerDiscountTotal
	quote.CouponDiscount = couponDiscount
	quote.Tax = tax
	quote.Shipping = shipping
	quote.Total = total

	// Items are authoritative: when rounding drift pushes the order total
	// more than a paisa away from the item sum, correct it and log.
	itemSum := decimal.Zero
	for _, item := range quote.Items {
		itemSum = itemSum.Add(item.Breakdown.FinalPrice)
	}
	expected := itemSum.Add(tax).Add(shipping).Round(2)
	if total.Sub(expected).Abs().GreaterThan(decimal.NewFromFloat(0.01)) {
		ctx = b.logg.WithFields(ctx, map[string]any{
			"computed_total": total.StringFixed(2),
			"item_sum_total": expected.StringFixed(2),
		})
		b.logg.Error(ctx, "breakdown identity violated, correcting total to item sum", nil)
		quote.Total = expected
	}

	return quote, nil
}
