package purchase

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andresvillarreal/comprabot-backend/pkg/db/models"
	"github.com/andresvillarreal/comprabot-backend/pkg/enums"
)

// OrderRepository persists order snapshots and drives status transitions.
type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	Create(ctx context.Context, record *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// TransitionStatus moves the order from one status to another with a
	// compare-and-set; it reports whether the row actually changed.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error)
}

// SubmissionRepository persists the single logical payment submission per order.
type SubmissionRepository interface {
	WithTx(tx *gorm.DB) SubmissionRepository
	Upsert(ctx context.Context, record *models.PaymentSubmission) error
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentSubmission, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
