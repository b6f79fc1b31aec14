package coupons

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

type sessionStore interface {
	StoreAppliedCoupon(ctx context.Context, userID, code string, ttl time.Duration) error
	GetAppliedCoupon(ctx context.Context, userID string) (string, error)
	ClearAppliedCoupon(ctx context.Context, userID string) error
}

const sessionTTL = 24 * time.Hour

// Service owns coupon eligibility, the session-applied coupon, and the
// usage counters that move during order placement.
type Service interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	CheckEligibility(ctx context.Context, coupon *models.Coupon, userID uuid.UUID, cartTotal decimal.Decimal) error
	ApplySession(ctx context.Context, userID uuid.UUID, code string, cartTotal decimal.Decimal) (*models.Coupon, error)
	SessionCoupon(ctx context.Context, userID uuid.UUID) (*models.Coupon, error)
	ClearSession(ctx context.Context, userID uuid.UUID) error
	Redeem(ctx context.Context, tx *gorm.DB, couponID, userID uuid.UUID) error
	ReleaseUsage(ctx context.Context, tx *gorm.DB, couponID, userID uuid.UUID) error
	CreateCoupon(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error)
	ListCoupons(ctx context.Context) ([]models.Coupon, error)
}

type service struct {
	repo    Repository
	session sessionStore
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the coupon service with the required dependencies.
func NewService(repo Repository, session sessionStore, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	if session == nil {
		return nil, fmt.Errorf("coupon session store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, session: session, logg: logg, now: time.Now}, nil
}

func (s *service) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coupon code")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	return coupon, nil
}

// CheckEligibility enforces the preconditions the allocator assumes:
// active, inside the window, minimum met, global and per-user caps not
// exceeded. Violations are user-facing validation errors.
func (s *service) CheckEligibility(ctx context.Context, coupon *models.Coupon, userID uuid.UUID, cartTotal decimal.Decimal) error {
	if coupon == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid coupon code")
	}
	if !coupon.Active {
		return pkgerrors.New(pkgerrors.CodeValidation, "this coupon is no longer active")
	}
	if !coupon.WindowContains(s.now().UTC()) {
		return pkgerrors.New(pkgerrors.CodeValidation, "this coupon is not valid today")
	}
	if cartTotal.LessThan(coupon.MinOrderAmount) {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("order must be at least %s to use this coupon", coupon.MinOrderAmount.StringFixed(2)))
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		return pkgerrors.New(pkgerrors.CodeValidation, "this coupon has reached its usage limit")
	}
	if coupon.PerUserLimit > 0 {
		usage, err := s.repo.FindUsage(ctx, coupon.ID, userID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon usage")
		}
		if usage != nil && usage.UseCount >= coupon.PerUserLimit {
			return pkgerrors.New(pkgerrors.CodeValidation, "you have already used this coupon")
		}
	}
	return nil
}

// ApplySession validates the code against the current cart total and
// stores it as the user's applied coupon.
func (s *service) ApplySession(ctx context.Context, userID uuid.UUID, code string, cartTotal decimal.Decimal) (*models.Coupon, error) {
	coupon, err := s.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.CheckEligibility(ctx, coupon, userID, cartTotal); err != nil {
		return nil, err
	}
	if err := s.session.StoreAppliedCoupon(ctx, userID.String(), coupon.Code, sessionTTL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store applied coupon")
	}
	return coupon, nil
}

// SessionCoupon loads the coupon currently applied by the user, or nil.
func (s *service) SessionCoupon(ctx context.Context, userID uuid.UUID) (*models.Coupon, error) {
	code, err := s.session.GetAppliedCoupon(ctx, userID.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load applied coupon")
	}
	if code == "" {
		return nil, nil
	}
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// Coupon deleted since it was applied; drop the stale session.
			_ = s.session.ClearAppliedCoupon(ctx, userID.String())
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	return coupon, nil
}

func (s *service) ClearSession(ctx context.Context, userID uuid.UUID) error {
	if err := s.session.ClearAppliedCoupon(ctx, userID.String()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear applied coupon")
	}
	return nil
}

// Redeem moves the usage counters inside the caller's placement
// transaction.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, couponID, userID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	if err := repo.IncrementUsage(ctx, couponID, userID, s.now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redeem coupon")
	}
	return nil
}

// ReleaseUsage compensates a Redeem when placement fails after the
// counters already moved.
func (s *service) ReleaseUsage(ctx context.Context, tx *gorm.DB, couponID, userID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	if err := repo.DecrementUsage(ctx, couponID, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release coupon usage")
	}
	return nil
}

func (s *service) CreateCoupon(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	if coupon == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon payload required")
	}
	if coupon.Code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	if !coupon.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid discount kind")
	}
	if coupon.Value.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon value must be positive")
	}
	if coupon.MaxDiscount != nil && coupon.Kind != enums.DiscountKindPercentage {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max discount applies to percentage coupons only")
	}
	if coupon.ExpiresAt.Before(coupon.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon expiry precedes start date")
	}

	created, err := s.repo.Create(ctx, coupon)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon")
	}
	return created, nil
}

func (s *service) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}
	return list, nil
}
