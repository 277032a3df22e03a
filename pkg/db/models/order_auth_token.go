package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/andresvillarreal/comprabot-backend/pkg/enums"
)

// OrderAuthToken is one issued OTP for an order. Several rows may exist per
// order (regeneration); validation always targets the newest unused one.
// UsedAt flips exactly once via a compare-and-set update.
type OrderAuthToken struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	Token       string             `gorm:"column:token;not null"`
	Channel     enums.TokenChannel `gorm:"column:channel;not null"`
	Destination string             `gorm:"column:destination;not null"`
	ExpiresAt   time.Time          `gorm:"column:expires_at;not null"`
	UsedAt      *time.Time         `gorm:"column:used_at"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
}
