package offers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
)

// Repository loads offer rows for the discount engine and the back office.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindCandidates(ctx context.Context, productID, categoryID uuid.UUID, now time.Time) ([]models.Offer, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	List(ctx context.Context) ([]models.Offer, error)
	Create(ctx context.Context, offer *models.Offer) (*models.Offer, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an offers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindCandidates(ctx context.Context, productID, categoryID uuid.UUID, now time.Time) ([]models.Offer, error) {
	var candidates []models.Offer
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("starts_at <= ? AND ends_at >= ?", now, now).
		Where(
			"scope IN ? OR (scope = ? AND product_ids @> ARRAY[?]::uuid[]) OR (scope = ? AND category_ids @> ARRAY[?]::uuid[])",
			[]string{"all_products", "all_categories"},
			"specific_products", productID,
			"specific_categories", categoryID,
		).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&offer).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repository) List(ctx context.Context) ([]models.Offer, error) {
	var offers []models.Offer
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&offers).Error
	if err != nil {
		return nil, err
	}
	return offers, nil
}

func (r *repository) Create(ctx context.Context, offer *models.Offer) (*models.Offer, error) {
	if err := r.db.WithContext(ctx).Create(offer).Error; err != nil {
		return nil, err
	}
	return offer, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// DeactivateExpired retires offers whose window has closed.
func (r *repository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("active = ? AND ends_at < ?", true, now).
		Update("active", false)
	return res.RowsAffected, res.Error
}
