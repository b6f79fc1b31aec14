package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog entry. SalePrice is the list price the storefront
// starts from; offers apply on top of it at read time.
type Product struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title        string          `gorm:"column:title;not null"`
	Author       string          `gorm:"column:author;not null"`
	Description  *string         `gorm:"column:description"`
	CategoryID   uuid.UUID       `gorm:"column:category_id;type:uuid;not null"`
	Category     *Category       `gorm:"foreignKey:CategoryID"`
	RegularPrice decimal.Decimal `gorm:"column:regular_price;type:numeric(12,2);not null"`
	SalePrice    decimal.Decimal `gorm:"column:sale_price;type:numeric(12,2);not null"`
	Stock        int             `gorm:"column:stock;not null;default:0"`
	IsListed     bool            `gorm:"column:is_listed;not null;default:true"`
	ImageURL     *string         `gorm:"column:image_url"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt    gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}

// Purchasable reports whether the product can currently be sold.
func (p Product) Purchasable() bool {
	return p.IsListed && !p.DeletedAt.Valid
}

// Category groups products for listing and offer targeting.
type Category struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	IsListed  bool      `gorm:"column:is_listed;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
