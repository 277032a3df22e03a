package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/andresvillarreal/comprabot-backend/pkg/enums"
)

// Cart is the single active cart per owner key. It is created lazily on the
// first mutation and flipped to converted when an order snapshots it.
type Cart struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerKey    string           `gorm:"column:owner_key;not null;index"`
	Status      enums.CartStatus `gorm:"column:status;not null;default:'active'"`
	ConvertedAt *time.Time       `gorm:"column:converted_at"`
	Items       []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
