package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/andresvillarreal/comprabot-backend/pkg/enums"
)

// Order is the immutable snapshot taken from a cart at creation time. Totals
// and the tax/FX configuration are frozen here; later cart mutations or
// config changes never alter an existing order.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerKey      string            `gorm:"column:owner_key;not null;index"`
	Status        enums.OrderStatus `gorm:"column:status;not null;default:'pending_confirmation'"`
	SubtotalUSD   decimal.Decimal   `gorm:"column:subtotal_usd;type:numeric(14,2);not null"`
	TaxPercent    decimal.Decimal   `gorm:"column:tax_percent;type:numeric(6,2);not null"`
	FXRate        decimal.Decimal   `gorm:"column:fx_rate;type:numeric(14,4);not null"`
	TotalUSD      decimal.Decimal   `gorm:"column:total_usd;type:numeric(14,2);not null"`
	TotalLocal    decimal.Decimal   `gorm:"column:total_local;type:numeric(14,2);not null"`
	LocalCurrency string            `gorm:"column:local_currency;not null"`
	Items         []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
