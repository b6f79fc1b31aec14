package offers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

var (
	oneHundred = decimal.NewFromInt(100)
)

// Quote is the outcome of applying one offer to a unit price.
type Quote struct {
	Offer           *models.Offer
	DiscountAmount  decimal.Decimal
	DiscountPercent decimal.Decimal
	FinalPrice      decimal.Decimal
}

// Service is the discount engine: it selects the single best applicable
// offer for a product at a price.
type Service interface {
	BestOfferFor(ctx context.Context, productID, categoryID uuid.UUID, price decimal.Decimal) *Quote
	CreateOffer(ctx context.Context, offer *models.Offer) (*models.Offer, error)
	ListOffers(ctx context.Context) ([]models.Offer, error)
	UpdateOffer(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds the discount engine with the required dependencies.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("offers repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg, now: time.Now}, nil
}

// BestOfferFor returns the offer with the largest discount amount at the
// given price, or nil when no offer applies. Lookup failures are logged
// and treated as "no offer"; the pricing path never fails on offers.
func (s *service) BestOfferFor(ctx context.Context, productID, categoryID uuid.UUID, price decimal.Decimal) *Quote {
	if price.Sign() <= 0 {
		return nil
	}

	candidates, err := s.repo.FindCandidates(ctx, productID, categoryID, s.now().UTC())
	if err != nil {
		s.logg.Error(ctx, "offer candidate lookup failed", err)
		return nil
	}

	var best *Quote
	for i := range candidates {
		offer := candidates[i]
		if !Applicable(offer, productID, categoryID, s.now().UTC()) {
			continue
		}
		quote := ComputeDiscount(&offer, price)
		if quote == nil || quote.DiscountAmount.Sign() <= 0 {
			continue
		}
		if best == nil || betterThan(quote, best) {
			q := *quote
			q.Offer = &candidates[i]
			best = &q
		}
	}
	return best
}

// Applicable re-checks scope, window and the global-fixed rule against a
// single offer. The defensive re-check matters: a fixed-kind offer under a
// global scope must never be applied even if a query returns it.
func Applicable(offer models.Offer, productID, categoryID uuid.UUID, now time.Time) bool {
	if !offer.Active || !offer.WindowContains(now) {
		return false
	}
	if offer.Kind == enums.DiscountKindFixed && offer.Scope.IsGlobal() {
		return false
	}
	switch offer.Scope {
	case enums.OfferScopeAllProducts, enums.OfferScopeAllCategories:
		return true
	case enums.OfferScopeSpecificProducts:
		return offer.ProductIDs.Contains(productID)
	case enums.OfferScopeSpecificCategories:
		return offer.CategoryIDs.Contains(categoryID)
	default:
		return false
	}
}

// ComputeDiscount applies an offer to a unit price. Percentage discounts
// cap at 100%, fixed discounts cap at the price itself; all outputs are
// rounded to 2 decimals. Pure function, no side effects.
func ComputeDiscount(offer *models.Offer, price decimal.Decimal) *Quote {
	if offer == nil || price.Sign() <= 0 {
		return nil
	}

	var amount decimal.Decimal
	switch offer.Kind {
	case enums.DiscountKindPercentage:
		pct := offer.Value
		if pct.GreaterThan(oneHundred) {
			pct = oneHundred
		}
		amount = price.Mul(pct).Div(oneHundred)
	case enums.DiscountKindFixed:
		amount = offer.Value
		if amount.GreaterThan(price) {
			amount = price
		}
	default:
		return nil
	}

	amount = amount.Round(2)
	final := price.Sub(amount).Round(2)
	if final.Sign() < 0 {
		final = decimal.Zero
	}
	percent := decimal.Zero
	if price.Sign() > 0 {
		percent = amount.Mul(oneHundred).Div(price).Round(2)
	}

	return &Quote{
		Offer:           offer,
		DiscountAmount:  amount,
		DiscountPercent: percent,
		FinalPrice:      final,
	}
}

// betterThan prefers the larger discount amount; exact ties go to the more
// specific scope.
func betterThan(a, b *Quote) bool {
	switch a.DiscountAmount.Cmp(b.DiscountAmount) {
	case 1:
		return true
	case -1:
		return false
	}
	return a.Offer.Scope.Specificity() < b.Offer.Scope.Specificity()
}

func (s *service) CreateOffer(ctx context.Context, offer *models.Offer) (*models.Offer, error) {
	if offer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer payload required")
	}
	if !offer.Scope.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid offer scope")
	}
	if !offer.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid discount kind")
	}
	if offer.Value.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer value must be positive")
	}
	if offer.Kind == enums.DiscountKindFixed && offer.Scope.IsGlobal() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fixed offers must target specific products or categories")
	}
	if offer.EndsAt.Before(offer.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer end date precedes start date")
	}

	created, err := s.repo.Create(ctx, offer)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create offer")
	}
	return created, nil
}

func (s *service) ListOffers(ctx context.Context) ([]models.Offer, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list offers")
	}
	return list, nil
}

func (s *service) UpdateOffer(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "offer id required")
	}
	if len(updates) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "no updates supplied")
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update offer")
	}
	return nil
}
