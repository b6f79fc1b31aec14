package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the minimal identity row the storefront needs. Authentication
// itself happens upstream; the API only validates tokens minted there.
type User struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email     string    `gorm:"column:email;not null;uniqueIndex"`
	Name      string    `gorm:"column:name;not null"`
	Role      string    `gorm:"column:role;not null;default:'customer'"`
	IsBlocked bool      `gorm:"column:is_blocked;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
