package coupons

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

type fakeRepo struct {
	Repository
	coupons map[string]*models.Coupon
	usages  map[string]*models.CouponUsage
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		coupons: make(map[string]*models.Coupon),
		usages:  make(map[string]*models.CouponUsage),
	}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	if c, ok := f.coupons[code]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindUsage(ctx context.Context, couponID, userID uuid.UUID) (*models.CouponUsage, error) {
	if u, ok := f.usages[couponID.String()+userID.String()]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) IncrementUsage(ctx context.Context, couponID, userID uuid.UUID, now time.Time) error {
	key := couponID.String() + userID.String()
	u, ok := f.usages[key]
	if !ok {
		u = &models.CouponUsage{CouponID: couponID, UserID: userID}
		f.usages[key] = u
	}
	u.UseCount++
	u.LastUsedAt = &now
	return nil
}

func (f *fakeRepo) DecrementUsage(ctx context.Context, couponID, userID uuid.UUID) error {
	if u, ok := f.usages[couponID.String()+userID.String()]; ok && u.UseCount > 0 {
		u.UseCount--
	}
	return nil
}

type fakeSession struct {
	applied map[string]string
}

func newFakeSession() *fakeSession {
	return &fakeSession{applied: make(map[string]string)}
}

func (f *fakeSession) StoreAppliedCoupon(ctx context.Context, userID, code string, ttl time.Duration) error {
	f.applied[userID] = code
	return nil
}

func (f *fakeSession) GetAppliedCoupon(ctx context.Context, userID string) (string, error) {
	return f.applied[userID], nil
}

func (f *fakeSession) ClearAppliedCoupon(ctx context.Context, userID string) error {
	delete(f.applied, userID)
	return nil
}

func validCoupon() *models.Coupon {
	now := time.Now().UTC()
	return &models.Coupon{
		ID:             uuid.New(),
		Code:           "SAVE100",
		Kind:           enums.DiscountKindFixed,
		Value:          dec("100"),
		MinOrderAmount: dec("500"),
		Active:         true,
		StartsAt:       now.Add(-time.Hour),
		ExpiresAt:      now.Add(time.Hour),
		UsageLimit:     10,
		PerUserLimit:   1,
	}
}

func newCouponService(t *testing.T, repo Repository, session sessionStore) Service {
	t.Helper()
	svc, err := NewService(repo, session, logger.New(logger.Options{}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func expectValidation(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	de := pkgerrors.As(err)
	if de == nil || de.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCheckEligibilityPasses(t *testing.T) {
	repo := newFakeRepo()
	svc := newCouponService(t, repo, newFakeSession())

	if err := svc.CheckEligibility(context.Background(), validCoupon(), uuid.New(), dec("1050")); err != nil {
		t.Fatalf("expected eligible, got %v", err)
	}
}

func TestCheckEligibilityMinOrder(t *testing.T) {
	svc := newCouponService(t, newFakeRepo(), newFakeSession())
	err := svc.CheckEligibility(context.Background(), validCoupon(), uuid.New(), dec("499.99"))
	expectValidation(t, err)
}

func TestCheckEligibilityInactive(t *testing.T) {
	svc := newCouponService(t, newFakeRepo(), newFakeSession())
	coupon := validCoupon()
	coupon.Active = false
	expectValidation(t, svc.CheckEligibility(context.Background(), coupon, uuid.New(), dec("1000")))
}

func TestCheckEligibilityWindow(t *testing.T) {
	svc := newCouponService(t, newFakeRepo(), newFakeSession())
	coupon := validCoupon()
	coupon.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	expectValidation(t, svc.CheckEligibility(context.Background(), coupon, uuid.New(), dec("1000")))
}

func TestCheckEligibilityGlobalCap(t *testing.T) {
	svc := newCouponService(t, newFakeRepo(), newFakeSession())
	coupon := validCoupon()
	coupon.UsedCount = coupon.UsageLimit
	expectValidation(t, svc.CheckEligibility(context.Background(), coupon, uuid.New(), dec("1000")))
}

func TestCheckEligibilityPerUserCap(t *testing.T) {
	repo := newFakeRepo()
	svc := newCouponService(t, repo, newFakeSession())
	coupon := validCoupon()
	userID := uuid.New()
	repo.usages[coupon.ID.String()+userID.String()] = &models.CouponUsage{
		CouponID: coupon.ID,
		UserID:   userID,
		UseCount: 1,
	}
	expectValidation(t, svc.CheckEligibility(context.Background(), coupon, userID, dec("1000")))
}

func TestApplySessionStoresCode(t *testing.T) {
	repo := newFakeRepo()
	session := newFakeSession()
	coupon := validCoupon()
	repo.coupons[coupon.Code] = coupon
	svc := newCouponService(t, repo, session)
	userID := uuid.New()

	applied, err := svc.ApplySession(context.Background(), userID, "save100", dec("1050"))
	if err != nil {
		t.Fatalf("apply session: %v", err)
	}
	if applied.ID != coupon.ID {
		t.Fatal("wrong coupon applied")
	}
	if session.applied[userID.String()] != "SAVE100" {
		t.Fatalf("session not updated, got %q", session.applied[userID.String()])
	}
}

func TestApplySessionUnknownCode(t *testing.T) {
	svc := newCouponService(t, newFakeRepo(), newFakeSession())
	_, err := svc.ApplySession(context.Background(), uuid.New(), "NOPE", dec("1000"))
	expectValidation(t, err)
}

func TestSessionCouponRoundTrip(t *testing.T) {
	repo := newFakeRepo()
	session := newFakeSession()
	coupon := validCoupon()
	repo.coupons[coupon.Code] = coupon
	svc := newCouponService(t, repo, session)
	userID := uuid.New()

	if _, err := svc.ApplySession(context.Background(), userID, "SAVE100", dec("1050")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, err := svc.SessionCoupon(context.Background(), userID)
	if err != nil {
		t.Fatalf("session coupon: %v", err)
	}
	if got == nil || got.ID != coupon.ID {
		t.Fatal("expected applied coupon back")
	}

	if err := svc.ClearSession(context.Background(), userID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, err = svc.SessionCoupon(context.Background(), userID)
	if err != nil {
		t.Fatalf("session coupon after clear: %v", err)
	}
	if got != nil {
		t.Fatal("expected no coupon after clear")
	}
}

func TestRedeemAndReleaseUsage(t *testing.T) {
	repo := newFakeRepo()
	svc := newCouponService(t, repo, newFakeSession())
	couponID := uuid.New()
	userID := uuid.New()

	if err := svc.Redeem(context.Background(), nil, couponID, userID); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	usage := repo.usages[couponID.String()+userID.String()]
	if usage == nil || usage.UseCount != 1 {
		t.Fatalf("expected use count 1, got %+v", usage)
	}

	if err := svc.ReleaseUsage(context.Background(), nil, couponID, userID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if usage.UseCount != 0 {
		t.Fatalf("expected use count rolled back to 0, got %d", usage.UseCount)
	}
}

func TestCreateCouponValidation(t *testing.T) {
	svc := newCouponService(t, newFakeRepo(), newFakeSession())

	maxDiscount := dec("50")
	bad := validCoupon()
	bad.Kind = enums.DiscountKindFixed
	bad.MaxDiscount = &maxDiscount
	_, err := svc.CreateCoupon(context.Background(), bad)
	expectValidation(t, err)

	missing := validCoupon()
	missing.Code = ""
	_, err = svc.CreateCoupon(context.Background(), missing)
	expectValidation(t, err)
}
