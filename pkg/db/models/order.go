package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	"github.com/bookhaven/bookhaven-backend/pkg/types"
)

// Order is the immutable financial record created atomically at checkout.
// At creation time Total = Subtotal - CouponDiscount + Tax + Shipping
// within a paisa of rounding; the offer discount is already folded into
// Subtotal through per-item discounted prices.
type Order struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber       string                `gorm:"column:order_number;not null;uniqueIndex"`
	UserID            uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	ShippingAddress   types.AddressSnapshot `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	PaymentMethod     enums.PaymentMethod   `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus     enums.PaymentStatus   `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	Status            enums.OrderStatus     `gorm:"column:status;type:text;not null;default:'placed'"`
	Subtotal          decimal.Decimal       `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Tax               decimal.Decimal       `gorm:"column:tax;type:numeric(12,2);not null"`
	Shipping          decimal.Decimal       `gorm:"column:shipping;type:numeric(12,2);not null"`
	OfferDiscount     decimal.Decimal       `gorm:"column:offer_discount;type:numeric(12,2);not null;default:0"`
	CouponCode        *string               `gorm:"column:coupon_code"`
	CouponID          *uuid.UUID            `gorm:"column:coupon_id;type:uuid"`
	CouponDiscount    decimal.Decimal       `gorm:"column:coupon_discount;type:numeric(12,2);not null;default:0"`
	Total             decimal.Decimal       `gorm:"column:total;type:numeric(12,2);not null"`
	RefundedTotal     decimal.Decimal       `gorm:"column:refunded_total;type:numeric(12,2);not null;default:0"`
	RazorpayOrderID   *string               `gorm:"column:razorpay_order_id"`
	RazorpayPaymentID *string               `gorm:"column:razorpay_payment_id"`
	Items             []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ProcessedAt       *time.Time            `gorm:"column:processed_at"`
	ShippedAt         *time.Time            `gorm:"column:shipped_at"`
	DeliveredAt       *time.Time            `gorm:"column:delivered_at"`
	CancelledAt       *time.Time            `gorm:"column:cancelled_at"`
	ReturnedAt        *time.Time            `gorm:"column:returned_at"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is a frozen line item. Title and image survive product
// deletion; PriceBreakdown is written once at placement and is the only
// source of truth for later refunds.
type OrderItem struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID       uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	Title           string                `gorm:"column:title;not null"`
	ImageURL        *string               `gorm:"column:image_url"`
	OriginalPrice   decimal.Decimal       `gorm:"column:original_price;type:numeric(12,2);not null"`
	DiscountedPrice decimal.Decimal       `gorm:"column:discounted_price;type:numeric(12,2);not null"`
	Quantity        int                   `gorm:"column:quantity;not null"`
	Status          enums.OrderItemStatus `gorm:"column:status;type:text;not null;default:'active'"`
	PriceBreakdown  types.PriceBreakdown  `gorm:"column:price_breakdown;type:jsonb;serializer:json"`
	CancelReason    *string               `gorm:"column:cancel_reason"`
	ReturnReason    *string               `gorm:"column:return_reason"`
	RejectReason    *string               `gorm:"column:reject_reason"`
	CancelledAt     *time.Time            `gorm:"column:cancelled_at"`
	ReturnedAt      *time.Time            `gorm:"column:returned_at"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
