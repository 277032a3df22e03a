package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/andresvillarreal/comprabot-backend/pkg/db/models"
	pkgerrors "github.com/andresvillarreal/comprabot-backend/pkg/errors"
)

// ProductSummary is the catalog view returned to clients.
type ProductSummary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PriceUSD    string    `json:"priceUsd"`
	PriceCents  int       `json:"priceCents"`
}

// Service exposes catalog lookups.
type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductSummary, error)
	FindProduct(ctx context.Context, name string) (*ProductSummary, error)
	Search(ctx context.Context, query string, limit int) ([]ProductSummary, error)
}

type service struct {
	repo ProductRepository
}

// NewService builds the catalog service.
func NewService(repo ProductRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

// GetProduct loads one active product by ID.
func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductSummary, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !row.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	summary := Summarize(row)
	return &summary, nil
}

// FindProduct resolves a product by (partial) name, as mentioned in chat.
func (s *service) FindProduct(ctx context.Context, name string) (*ProductSummary, error) {
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	row, err := s.repo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find product")
	}
	summary := Summarize(row)
	return &summary, nil
}

// Search lists active products matching the query.
func (s *service) Search(ctx context.Context, query string, limit int) ([]ProductSummary, error) {
	rows, err := s.repo.SearchActive(ctx, query, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search products")
	}
	summaries := make([]ProductSummary, 0, len(rows))
	for i := range rows {
		summaries = append(summaries, Summarize(&rows[i]))
	}
	return summaries, nil
}

// Summarize converts a product row to its client view.
func Summarize(row *models.Product) ProductSummary {
	return ProductSummary{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		PriceUSD:    FormatUSD(row.PriceCents),
		PriceCents:  row.PriceCents,
	}
}

// FormatUSD renders integer cents as a fixed two-decimal dollar string.
func FormatUSD(cents int) string {
	return decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100)).StringFixed(2)
}
