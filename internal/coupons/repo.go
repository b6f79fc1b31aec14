package coupons

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
)

// Repository persists coupons and per-user usage counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
	Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	FindUsage(ctx context.Context, couponID, userID uuid.UUID) (*models.CouponUsage, error)
	IncrementUsage(ctx context.Context, couponID, userID uuid.UUID, now time.Time) error
	DecrementUsage(ctx context.Context, couponID, userID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a coupons repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if err := r.db.WithContext(ctx).Where("code = ?", normalized).First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) List(ctx context.Context) ([]models.Coupon, error) {
	var coupons []models.Coupon
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&coupons).Error
	if err != nil {
		return nil, err
	}
	return coupons, nil
}

func (r *repository) Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if err := r.db.WithContext(ctx).Create(coupon).Error; err != nil {
		return nil, err
	}
	return coupon, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// DeactivateExpired retires coupons whose expiry has passed so listings
// and eligibility checks stop considering them.
func (r *repository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("active = ? AND expires_at < ?", true, now).
		Update("active", false)
	return res.RowsAffected, res.Error
}

func (r *repository) FindUsage(ctx context.Context, couponID, userID uuid.UUID) (*models.CouponUsage, error) {
	var usage models.CouponUsage
	err := r.db.WithContext(ctx).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		First(&usage).Error
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

// IncrementUsage bumps both the global counter and the per-user row. The
// upsert keeps the unique (coupon_id, user_id) row stable under retries.
func (r *repository) IncrementUsage(ctx context.Context, couponID, userID uuid.UUID, now time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", couponID).
		Update("used_count", gorm.Expr("used_count + 1")).Error
	if err != nil {
		return err
	}

	usage := models.CouponUsage{
		CouponID:   couponID,
		UserID:     userID,
		UseCount:   1,
		LastUsedAt: &now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "coupon_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"use_count":    gorm.Expr("coupon_usages.use_count + 1"),
				"last_used_at": now,
			}),
		}).
		Create(&usage).Error
}

// DecrementUsage is the compensating write for a failed placement. Floors
// at zero on both counters.
func (r *repository) DecrementUsage(ctx context.Context, couponID, userID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND used_count > 0", couponID).
		Update("used_count", gorm.Expr("used_count - 1")).Error
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ? AND use_count > 0", couponID, userID).
		Update("use_count", gorm.Expr("use_count - 1")).Error
}
