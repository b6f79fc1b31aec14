package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven-backend/pkg/types"
)

// PendingCheckout parks a fully priced basket between the two phases of a
// gateway checkout. The token is server-issued, the snapshot is frozen,
// and the record is consumed exactly once; expiry is checked lazily at
// verification time.
type PendingCheckout struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Token           uuid.UUID             `gorm:"column:token;type:uuid;not null;uniqueIndex"`
	UserID          uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	QuoteSnapshot   json.RawMessage       `gorm:"column:quote_snapshot;type:jsonb;not null"`
	ShippingAddress types.AddressSnapshot `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	CouponID        *uuid.UUID            `gorm:"column:coupon_id;type:uuid"`
	Amount          decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	GatewayOrderID  string                `gorm:"column:gateway_order_id;not null;index"`
	ExpiresAt       time.Time             `gorm:"column:expires_at;not null"`
	ConsumedAt      *time.Time            `gorm:"column:consumed_at"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
}

// Expired reports whether the pending checkout can no longer be verified.
func (p PendingCheckout) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
