package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andresvillarreal/comprabot-backend/pkg/db/models"
)

// ProductRepository exposes the catalog reads the assistant and the cart need.
type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByName(ctx context.Context, name string) (*models.Product, error)
	SearchActive(ctx context.Context, query string, limit int) ([]models.Product, error)
}

// Repository is the GORM-backed catalog store.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) ProductRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads one product row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var row models.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByName loads the first active product whose name contains the given
// fragment. Used by the conversational flow, where users name products rather
// than pass IDs.
func (r *Repository) FindByName(ctx context.Context, name string) (*models.Product, error) {
	var row models.Product
	err := r.db.WithContext(ctx).
		Where("LOWER(name) LIKE LOWER(?) AND is_active = ?", "%"+name+"%", true).
		Order("name ASC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SearchActive lists active products matching the query, newest first.
func (r *Repository) SearchActive(ctx context.Context, query string, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []models.Product
	tx := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Limit(limit)
	if query != "" {
		tx = tx.Where("LOWER(name) LIKE LOWER(?)", "%"+query+"%")
	}
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
