package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven-backend/internal/offers"
	"github.com/bookhaven/bookhaven-backend/pkg/config"
	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeOffers struct {
	quotes map[uuid.UUID]*offers.Quote
}

func (f *fakeOffers) BestOfferFor(ctx context.Context, productID, categoryID uuid.UUID, price decimal.Decimal) *offers.Quote {
	return f.quotes[productID]
}

type fakeEligibility struct {
	err error
}

func (f *fakeEligibility) CheckEligibility(ctx context.Context, coupon *models.Coupon, userID uuid.UUID, cartTotal decimal.Decimal) error {
	return f.err
}

func testConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		FreeDeliveryThreshold: dec("1000"),
		DeliveryFee:           dec("50"),
		TaxRatePercent:        dec("8"),
		CODLimit:              dec("10000"),
		MaxQtyPerProduct:      5,
	}
}

func percentOffer(title, value string) *models.Offer {
	now := time.Now().UTC()
	return &models.Offer{
		ID:       uuid.New(),
		Title:    title,
		Scope:    enums.OfferScopeSpecificProducts,
		Kind:     enums.DiscountKindPercentage,
		Value:    dec(value),
		Active:   true,
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(time.Hour),
	}
}

func newTestBuilder(t *testing.T, offerSvc offerEngine, eligibility eligibilityChecker) Builder {
	t.Helper()
	b, err := NewBuilder(offerSvc, eligibility, testConfig(), logger.New(logger.Options{}))
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	return b
}

// Two items, A 500 with 10% offer, B 300x2 without, fixed 100 coupon:
// subtotal 1050, coupon split 42.86/57.14, tax 76.00, free delivery,
// total 1026.00.
func TestBuildEndToEndScenario(t *testing.T) {
	productA := uuid.New()
	productB := uuid.New()
	offer := percentOffer("10% off books", "10")

	offerSvc := &fakeOffers{quotes: map[uuid.UUID]*offers.Quote{
		productA: {
			Offer:          offer,
			DiscountAmount: dec("50"),
			FinalPrice:     dec("450"),
		},
	}}
	coupon := &models.Coupon{
		ID:             uuid.New(),
		Code:           "SAVE100",
		Kind:           enums.DiscountKindFixed,
		Value:          dec("100"),
		MinOrderAmount: dec("500"),
	}

	b := newTestBuilder(t, offerSvc, &fakeEligibility{})
	quote, err := b.Build(context.Background(), BuildInput{
		UserID: uuid.New(),
		Coupon: coupon,
		Items: []BuildItem{
			{ProductID: productA, CategoryID: uuid.New(), Title: "Book A", UnitPrice: dec("500"), Quantity: 1},
			{ProductID: productB, CategoryID: uuid.New(), Title: "Book B", UnitPrice: dec("300"), Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if !quote.Subtotal.Equal(dec("1050")) {
		t.Fatalf("expected subtotal 1050, got %s", quote.Subtotal)
	}
	if !quote.CouponDiscount.Equal(dec("100.00")) {
		t.Fatalf("expected coupon discount 100.00, got %s", quote.CouponDiscount)
	}
	if !quote.Tax.Equal(dec("76.00")) {
		t.Fatalf("expected tax 76.00, got %s", quote.Tax)
	}
	if !quote.Shipping.IsZero() {
		t.Fatalf("expected free delivery, got %s", quote.Shipping)
	}
	if !quote.Total.Equal(dec("1026.00")) {
		t.Fatalf("expected total 1026.00, got %s", quote.Total)
	}

	var itemA, itemB *ItemQuote
	for i := range quote.Items {
		switch quote.Items[i].ProductID {
		case productA:
			itemA = &quote.Items[i]
		case productB:
			itemB = &quote.Items[i]
		}
	}
	if itemA == nil || itemB == nil {
		t.Fatal("missing item quotes")
	}
	if !itemA.Breakdown.CouponDiscount.Equal(dec("42.86")) {
		t.Fatalf("expected 42.86 allocated to A, got %s", itemA.Breakdown.CouponDiscount)
	}
	if !itemB.Breakdown.CouponDiscount.Equal(dec("57.14")) {
		t.Fatalf("expected 57.14 allocated to B, got %s", itemB.Breakdown.CouponDiscount)
	}
	if !itemA.Breakdown.FinalPrice.Equal(dec("407.14")) {
		t.Fatalf("expected A final 407.14, got %s", itemA.Breakdown.FinalPrice)
	}
	if !itemB.Breakdown.FinalPrice.Equal(dec("542.86")) {
		t.Fatalf("expected B final 542.86, got %s", itemB.Breakdown.FinalPrice)
	}
	if itemA.Breakdown.OfferTitle != "10% off books" {
		t.Fatalf("offer title not recorded, got %q", itemA.Breakdown.OfferTitle)
	}
}

// Breakdown identity: sum of item final prices + tax + shipping must equal
// the order total within a paisa, across mixed baskets.
func TestBuildBreakdownIdentity(t *testing.T) {
	baskets := [][]BuildItem{
		{
			{ProductID: uuid.New(), CategoryID: uuid.New(), Title: "X", UnitPrice: dec("33.33"), Quantity: 3},
			{ProductID: uuid.New(), CategoryID: uuid.New(), Title: "Y", UnitPrice: dec("66.67"), Quantity: 1},
		},
		{
			{ProductID: uuid.New(), CategoryID: uuid.New(), Title: "Z", UnitPrice: dec("999.99"), Quantity: 1},
		},
		{
			{ProductID: uuid.New(), CategoryID: uuid.New(), Title: "P", UnitPrice: dec("149.50"), Quantity: 2},
			{ProductID: uuid.New(), CategoryID: uuid.New(), Title: "Q", UnitPrice: dec("75.25"), Quantity: 4},
			{ProductID: uuid.New(), CategoryID: uuid.New(), Title: "R", UnitPrice: dec("0.99"), Quantity: 5},
		},
	}
	coupon := &models.Coupon{
		ID:    uuid.New(),
		Code:  "PCT17",
		Kind:  enums.DiscountKindPercentage,
		Value: dec("17"),
	}

	b := newTestBuilder(t, &fakeOffers{}, &fakeEligibility{})
	for _, items := range baskets {
		quote, err := b.Build(context.Background(), BuildInput{UserID: uuid.New(), Items: items, Coupon: coupon})
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		itemSum := decimal.Zero
		for _, item := range quote.Items {
			itemSum = itemSum.Add(item.Breakdown.FinalPrice)
		}
		identity := itemSum.Add(quote.Tax).Add(quote.Shipping)
		if quote.Total.Sub(identity).Abs().GreaterThan(dec("0.01")) {
			t.Fatalf("identity violated: total %s vs items+tax+shipping %s", quote.Total, identity)
		}
	}
}

func TestBuildChargesDeliveryBelowThreshold(t *testing.T) {
	b := newTestBuilder(t, &fakeOffers{}, &fakeEligibility{})
	quote, err := b.Build(context.Background(), BuildInput{
		UserID: uuid.New(),
		Items: []BuildItem{
			{ProductID: uuid.New(), CategoryID: uuid.New(), Title: "Cheap", UnitPrice: dec("200"), Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !quote.Shipping.Equal(dec("50")) {
		t.Fatalf("expected delivery fee 50, got %s", quote.Shipping)
	}
	// 200 + 8% tax + 50 delivery
	if !quote.Total.Equal(dec("266.00")) {
		t.Fatalf("expected total 266.00, got %s", quote.Total)
	}
}

func TestBuildSkipsIneligibleCoupon(t *testing.T) {
	b := newTestBuilder(t, &fakeOffers{}, &fakeEligibility{
		err: pkgerrors.New(pkgerrors.CodeValidation, "minimum not met"),
	})
	coupon := &models.Coupon{ID: uuid.New(), Code: "SAVE100", Kind: enums.DiscountKindFixed, Value: dec("100")}
	quote, err := b.Build(context.Background(), BuildInput{
		UserID: uuid.New(),
		Coupon: coupon,
		Items: []BuildItem{
			{ProductID: uuid.New(), CategoryID: uuid.New(), Title: "Book", UnitPrice: dec("300"), Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !quote.CouponDiscount.IsZero() {
		t.Fatalf("ineligible coupon must not discount, got %s", quote.CouponDiscount)
	}
	if quote.CouponCode != nil {
		t.Fatal("ineligible coupon must not be recorded on the quote")
	}
}

func TestBuildDeterministic(t *testing.T) {
	productID := uuid.New()
	categoryID := uuid.New()
	offer := percentOffer("festival", "12.5")
	offerSvc := &fakeOffers{quotes: map[uuid.UUID]*offers.Quote{
		productID: {Offer: offer, DiscountAmount: dec("31.25"), FinalPrice: dec("218.75")},
	}}
	input := BuildInput{
		UserID: uuid.New(),
		Items: []BuildItem{
			{ProductID: productID, CategoryID: categoryID, Title: "Book", UnitPrice: dec("250"), Quantity: 3},
		},
	}

	b := newTestBuilder(t, offerSvc, &fakeEligibility{})
	first, err := b.Build(context.Background(), input)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	second, err := b.Build(context.Background(), input)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !first.Total.Equal(second.Total) || !first.Tax.Equal(second.Tax) {
		t.Fatal("identical inputs must produce identical quotes")
	}
	for i := range first.Items {
		if !first.Items[i].Breakdown.FinalPrice.Equal(second.Items[i].Breakdown.FinalPrice) {
			t.Fatal("item breakdowns diverged between runs")
		}
	}
}

func TestBuildRejectsEmptyBasket(t *testing.T) {
	b := newTestBuilder(t, &fakeOffers{}, &fakeEligibility{})
	_, err := b.Build(context.Background(), BuildInput{UserID: uuid.New()})
	if err == nil {
		t.Fatal("expected validation error for empty basket")
	}
	de := pkgerrors.As(err)
	if de == nil || de.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
}
