package offers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	dbtypes "github.com/bookhaven/bookhaven-backend/pkg/db/types"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

type fakeRepo struct {
	Repository
	candidates []models.Offer
	err        error
}

func (f *fakeRepo) FindCandidates(ctx context.Context, productID, categoryID uuid.UUID, now time.Time) ([]models.Offer, error) {
	return f.candidates, f.err
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func newTestService(t *testing.T, repo Repository) *service {
	t.Helper()
	svc, err := NewService(repo, logger.New(logger.Options{}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc.(*service)
}

func windowedOffer(scope enums.OfferScope, kind enums.DiscountKind, value string) models.Offer {
	now := time.Now().UTC()
	return models.Offer{
		ID:       uuid.New(),
		Title:    "test offer",
		Scope:    scope,
		Kind:     kind,
		Value:    decimal.RequireFromString(value),
		Active:   true,
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(time.Hour),
	}
}

func TestComputeDiscountPercentage(t *testing.T) {
	offer := windowedOffer(enums.OfferScopeAllProducts, enums.DiscountKindPercentage, "10")
	quote := ComputeDiscount(&offer, decimal.NewFromInt(500))
	if quote == nil {
		t.Fatal("expected quote")
	}
	if !quote.DiscountAmount.Equal(decimal.RequireFromString("50")) {
		t.Fatalf("expected discount 50, got %s", quote.DiscountAmount)
	}
	if !quote.FinalPrice.Equal(decimal.RequireFromString("450")) {
		t.Fatalf("expected final 450, got %s", quote.FinalPrice)
	}
}

func TestComputeDiscountPercentageCappedAt100(t *testing.T) {
	offer := windowedOffer(enums.OfferScopeAllProducts, enums.DiscountKindPercentage, "150")
	quote := ComputeDiscount(&offer, decimal.NewFromInt(200))
	if !quote.DiscountAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected full-price discount, got %s", quote.DiscountAmount)
	}
	if !quote.FinalPrice.IsZero() {
		t.Fatalf("expected zero final price, got %s", quote.FinalPrice)
	}
}

func TestComputeDiscountFixedCappedAtPrice(t *testing.T) {
	offer := windowedOffer(enums.OfferScopeSpecificProducts, enums.DiscountKindFixed, "300")
	quote := ComputeDiscount(&offer, decimal.NewFromInt(100))
	if !quote.DiscountAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("fixed discount should cap at price, got %s", quote.DiscountAmount)
	}
	if quote.FinalPrice.Sign() != 0 {
		t.Fatalf("expected final price 0, got %s", quote.FinalPrice)
	}
}

func TestComputeDiscountMonotonicity(t *testing.T) {
	prices := []string{"0.01", "1", "99.99", "500", "12500"}
	values := []string{"1", "10", "33.33", "99", "100"}
	for _, p := range prices {
		for _, v := range values {
			price := decimal.RequireFromString(p)
			for _, kind := range []enums.DiscountKind{enums.DiscountKindPercentage, enums.DiscountKindFixed} {
				offer := windowedOffer(enums.OfferScopeSpecificProducts, kind, v)
				quote := ComputeDiscount(&offer, price)
				if quote == nil {
					t.Fatalf("nil quote for price=%s value=%s kind=%s", p, v, kind)
				}
				if quote.DiscountAmount.Sign() < 0 || quote.DiscountAmount.GreaterThan(price) {
					t.Fatalf("discount %s out of range for price %s", quote.DiscountAmount, price)
				}
				if quote.FinalPrice.Sign() < 0 {
					t.Fatalf("negative final price %s", quote.FinalPrice)
				}
				if !quote.FinalPrice.Equal(price.Sub(quote.DiscountAmount).Round(2)) {
					t.Fatalf("final %s != price %s - discount %s", quote.FinalPrice, price, quote.DiscountAmount)
				}
			}
		}
	}
}

func TestBestOfferForPicksLargestDiscount(t *testing.T) {
	productID := uuid.New()
	categoryID := uuid.New()

	small := windowedOffer(enums.OfferScopeAllProducts, enums.DiscountKindPercentage, "5")
	big := windowedOffer(enums.OfferScopeSpecificProducts, enums.DiscountKindFixed, "120")
	big.ProductIDs = dbtypes.UUIDArray{productID}

	svc := newTestService(t, &fakeRepo{candidates: []models.Offer{small, big}})
	quote := svc.BestOfferFor(context.Background(), productID, categoryID, decimal.NewFromInt(500))
	if quote == nil {
		t.Fatal("expected a best offer")
	}
	if quote.Offer.ID != big.ID {
		t.Fatalf("expected fixed 120 offer to win, got %s", quote.Offer.Title)
	}
	if !quote.DiscountAmount.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected discount 120, got %s", quote.DiscountAmount)
	}
}

func TestBestOfferForTieBreaksBySpecificity(t *testing.T) {
	productID := uuid.New()
	categoryID := uuid.New()

	global := windowedOffer(enums.OfferScopeAllProducts, enums.DiscountKindPercentage, "10")
	specific := windowedOffer(enums.OfferScopeSpecificProducts, enums.DiscountKindPercentage, "10")
	specific.ProductIDs = dbtypes.UUIDArray{productID}

	svc := newTestService(t, &fakeRepo{candidates: []models.Offer{global, specific}})
	quote := svc.BestOfferFor(context.Background(), productID, categoryID, decimal.NewFromInt(500))
	if quote == nil {
		t.Fatal("expected a best offer")
	}
	if quote.Offer.Scope != enums.OfferScopeSpecificProducts {
		t.Fatalf("expected specific_products to win tie, got %s", quote.Offer.Scope)
	}
}

func TestBestOfferForRejectsGlobalFixed(t *testing.T) {
	productID := uuid.New()
	categoryID := uuid.New()

	for _, scope := range []enums.OfferScope{enums.OfferScopeAllProducts, enums.OfferScopeAllCategories} {
		bad := windowedOffer(scope, enums.DiscountKindFixed, "100")
		svc := newTestService(t, &fakeRepo{candidates: []models.Offer{bad}})
		if quote := svc.BestOfferFor(context.Background(), productID, categoryID, decimal.NewFromInt(500)); quote != nil {
			t.Fatalf("global fixed offer under scope %s must never be selected", scope)
		}
	}
}

func TestBestOfferForLookupFailureMeansNoOffer(t *testing.T) {
	svc := newTestService(t, &fakeRepo{err: errors.New("db down")})
	if quote := svc.BestOfferFor(context.Background(), uuid.New(), uuid.New(), decimal.NewFromInt(100)); quote != nil {
		t.Fatal("lookup failure must be treated as no offer")
	}
}

func TestBestOfferForSkipsInactiveAndExpired(t *testing.T) {
	productID := uuid.New()

	inactive := windowedOffer(enums.OfferScopeAllProducts, enums.DiscountKindPercentage, "10")
	inactive.Active = false

	expired := windowedOffer(enums.OfferScopeAllProducts, enums.DiscountKindPercentage, "10")
	expired.StartsAt = time.Now().UTC().Add(-48 * time.Hour)
	expired.EndsAt = time.Now().UTC().Add(-24 * time.Hour)

	svc := newTestService(t, &fakeRepo{candidates: []models.Offer{inactive, expired}})
	if quote := svc.BestOfferFor(context.Background(), productID, uuid.New(), decimal.NewFromInt(500)); quote != nil {
		t.Fatal("inactive or expired offers must not apply")
	}
}

func TestCreateOfferRejectsGlobalFixed(t *testing.T) {
	svc := newTestService(t, &fakeRepo{})
	offer := windowedOffer(enums.OfferScopeAllCategories, enums.DiscountKindFixed, "50")
	if _, err := svc.CreateOffer(context.Background(), &offer); err == nil {
		t.Fatal("expected validation error for global fixed offer")
	}
}
