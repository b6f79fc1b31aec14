package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/bookhaven/bookhaven-backend/pkg/db/types"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
)

// Coupon is an order-level discount code. Usage counters move only inside
// order placement and are compensated when placement fails.
type Coupon struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code           string             `gorm:"column:code;not null;uniqueIndex"`
	Kind           enums.DiscountKind `gorm:"column:kind;type:text;not null"`
	Value          decimal.Decimal    `gorm:"column:value;type:numeric(12,2);not null"`
	MaxDiscount    *decimal.Decimal   `gorm:"column:max_discount;type:numeric(12,2)"`
	MinOrderAmount decimal.Decimal    `gorm:"column:min_order_amount;type:numeric(12,2);not null;default:0"`
	Active         bool               `gorm:"column:active;not null;default:true"`
	StartsAt       time.Time          `gorm:"column:starts_at;not null"`
	ExpiresAt      time.Time          `gorm:"column:expires_at;not null"`
	UsageLimit     int                `gorm:"column:usage_limit;not null;default:0"`
	UsedCount      int                `gorm:"column:used_count;not null;default:0"`
	PerUserLimit   int                `gorm:"column:per_user_limit;not null;default:1"`
	ProductIDs     dbtypes.UUIDArray  `gorm:"column:product_ids;type:uuid[]"`
	CategoryIDs    dbtypes.UUIDArray  `gorm:"column:category_ids;type:uuid[]"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// WindowContains reports whether the coupon is inside its validity window.
// Both bounds are inclusive.
func (c Coupon) WindowContains(now time.Time) bool {
	return !now.Before(c.StartsAt) && !now.After(c.ExpiresAt)
}

// CouponUsage tracks per-user redemption counts for a coupon.
type CouponUsage struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID   uuid.UUID  `gorm:"column:coupon_id;type:uuid;not null;uniqueIndex:idx_coupon_usages_coupon_user"`
	UserID     uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_coupon_usages_coupon_user"`
	UseCount   int        `gorm:"column:use_count;not null;default:0"`
	LastUsedAt *time.Time `gorm:"column:last_used_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
