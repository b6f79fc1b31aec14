package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven-backend/pkg/enums"
)

// Wallet holds one balance per user. Balance must always equal the sum of
// credits minus the sum of debits in the transaction log.
type Wallet struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Balance   decimal.Decimal `gorm:"column:balance;type:numeric(12,2);not null;default:0"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// WalletTransaction is an append-only ledger entry. For refund credits the
// (order_id, order_item_id, refund_kind) triple is the idempotency key: a
// partial unique index guards against crediting the same item twice.
type WalletTransaction struct {
	ID          uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID    uuid.UUID                   `gorm:"column:wallet_id;type:uuid;not null;index"`
	Type        enums.WalletTransactionType `gorm:"column:type;type:text;not null"`
	Amount      decimal.Decimal             `gorm:"column:amount;type:numeric(12,2);not null"`
	OrderID     *uuid.UUID                  `gorm:"column:order_id;type:uuid;index"`
	OrderItemID *uuid.UUID                  `gorm:"column:order_item_id;type:uuid"`
	RefundKind  *enums.RefundKind           `gorm:"column:refund_kind;type:text"`
	Reason      string                      `gorm:"column:reason;not null"`
	CreatedAt   time.Time                   `gorm:"column:created_at;autoCreateTime"`
}
