package token

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andresvillarreal/comprabot-backend/pkg/db/models"
)

// TokenRepository persists issued OTPs and flips them to used.
type TokenRepository interface {
	WithTx(tx *gorm.DB) TokenRepository
	Create(ctx context.Context, record *models.OrderAuthToken) error
	FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderAuthToken, error)
	Consume(ctx context.Context, tokenID uuid.UUID, at time.Time) (bool, error)
}

// Repository is the GORM-backed token store.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a token repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) TokenRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a newly issued token row.
func (r *Repository) Create(ctx context.Context, record *models.OrderAuthToken) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// FindLatestByOrder returns the most recently issued token for the order.
// Regeneration appends rows; only the newest one is ever validated.
func (r *Repository) FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderAuthToken, error) {
	var record models.OrderAuthToken
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Consume marks the token used with a compare-and-set on used_at. Exactly one
// concurrent caller observes true; the rest see the row already taken.
func (r *Repository) Consume(ctx context.Context, tokenID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderAuthToken{}).
		Where("id = ? AND used_at IS NULL", tokenID).
		Update("used_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
