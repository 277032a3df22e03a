package purchase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andresvillarreal/comprabot-backend/pkg/db/models"
	"github.com/andresvillarreal/comprabot-backend/pkg/enums"
)

// OrderRepo is the GORM-backed order store.
type OrderRepo struct {
	db *gorm.DB
}

// NewOrderRepo constructs an order repository bound to the provided DB.
func NewOrderRepo(db *gorm.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// WithTx binds the repository to a transaction.
func (r *OrderRepo) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &OrderRepo{db: tx}
}

// Create inserts the order snapshot together with its items.
func (r *OrderRepo) Create(ctx context.Context, record *models.Order) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// FindByID loads an order with its items.
func (r *OrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var record models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// TransitionStatus performs a compare-and-set status update.
func (r *OrderRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SubmissionRepo is the GORM-backed payment submission store.
type SubmissionRepo struct {
	db *gorm.DB
}

// NewSubmissionRepo constructs a submission repository bound to the provided DB.
func NewSubmissionRepo(db *gorm.DB) *SubmissionRepo {
	return &SubmissionRepo{db: db}
}

// WithTx binds the repository to a transaction.
func (r *SubmissionRepo) WithTx(tx *gorm.DB) SubmissionRepository {
	if tx == nil {
		return r
	}
	return &SubmissionRepo{db: tx}
}

// Upsert writes the submission, overwriting a prior one for the same order.
func (r *SubmissionRepo) Upsert(ctx context.Context, record *models.PaymentSubmission) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"method", "currency", "reference", "proof_url",
				"payer_name", "payer_phone", "status", "updated_at",
			}),
		}).
		Create(record).Error
}

// FindByOrder loads the submission for an order, nil if none exists.
func (r *SubmissionRepo) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentSubmission, error) {
	var record models.PaymentSubmission
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
