package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/andresvillarreal/comprabot-backend/pkg/enums"
)

// PaymentSubmission is the single logical proof-of-payment per order.
// Re-submission overwrites the pending row (upsert), it never appends.
type PaymentSubmission struct {
	ID         uuid.UUID                     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID                     `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Method     enums.PaymentMethod           `gorm:"column:method;not null"`
	Currency   string                        `gorm:"column:currency;not null"`
	Reference  string                        `gorm:"column:reference;not null"`
	ProofURL   *string                       `gorm:"column:proof_url"`
	PayerName  *string                       `gorm:"column:payer_name"`
	PayerPhone *string                       `gorm:"column:payer_phone"`
	Status     enums.PaymentSubmissionStatus `gorm:"column:status;not null;default:'EN_REVISION'"`
	CreatedAt  time.Time                     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time                     `gorm:"column:updated_at;autoUpdateTime"`
}
