package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
)

// Repository persists the pending records of the two-phase gateway flow.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePending(ctx context.Context, pending *models.PendingCheckout) (*models.PendingCheckout, error)
	FindPendingByToken(ctx context.Context, token uuid.UUID) (*models.PendingCheckout, error)
	MarkConsumed(ctx context.Context, id uuid.UUID, at time.Time) error
	FindOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	PurgeStalePending(ctx context.Context, now time.Time, retention time.Duration) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a checkout repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePending(ctx context.Context, pending *models.PendingCheckout) (*models.PendingCheckout, error) {
	if err := r.db.WithContext(ctx).Create(pending).Error; err != nil {
		return nil, err
	}
	return pending, nil
}

func (r *repository) FindPendingByToken(ctx context.Context, token uuid.UUID) (*models.PendingCheckout, error) {
	var pending models.PendingCheckout
	err := r.db.WithContext(ctx).
		Where("token = ?", token).
		First(&pending).Error
	if err != nil {
		return nil, err
	}
	return &pending, nil
}

// MarkConsumed claims the pending record exactly once. Zero rows affected
// means another verification already got there.
func (r *repository) MarkConsumed(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.PendingCheckout{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// PurgeStalePending drops pending records that can no longer be verified:
// unconsumed records past their expiry and consumed records older than the
// retention window.
func (r *repository) PurgeStalePending(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("(consumed_at IS NULL AND expires_at < ?) OR (consumed_at IS NOT NULL AND consumed_at < ?)", now, now.Add(-retention)).
		Delete(&models.PendingCheckout{})
	return res.RowsAffected, res.Error
}

func (r *repository) FindOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("razorpay_order_id = ?", gatewayOrderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}
