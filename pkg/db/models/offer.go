package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/bookhaven/bookhaven-backend/pkg/db/types"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
)

// Offer is a promotional discount rule applied automatically at read time.
// A fixed-kind offer must target a specific scope; global flat-amount
// offers are invalid and the discount engine skips them even if stored.
type Offer struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title       string             `gorm:"column:title;not null"`
	Scope       enums.OfferScope   `gorm:"column:scope;type:text;not null"`
	Kind        enums.DiscountKind `gorm:"column:kind;type:text;not null"`
	Value       decimal.Decimal    `gorm:"column:value;type:numeric(12,2);not null"`
	Active      bool               `gorm:"column:active;not null;default:true"`
	StartsAt    time.Time          `gorm:"column:starts_at;not null"`
	EndsAt      time.Time          `gorm:"column:ends_at;not null"`
	ProductIDs  dbtypes.UUIDArray  `gorm:"column:product_ids;type:uuid[]"`
	CategoryIDs dbtypes.UUIDArray  `gorm:"column:category_ids;type:uuid[]"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// WindowContains reports whether the offer window covers the given
// instant. Both bounds are inclusive.
func (o Offer) WindowContains(now time.Time) bool {
	return !now.Before(o.StartsAt) && !now.After(o.EndsAt)
}
