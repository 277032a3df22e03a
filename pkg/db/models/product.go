package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalog row read by the cart and the assistant search flow.
// Prices live here as integer cents; cart lines snapshot them at add time.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description string    `gorm:"column:description"`
	PriceCents  int       `gorm:"column:price_cents;not null"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
