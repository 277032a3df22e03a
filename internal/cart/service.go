package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andresvillarreal/comprabot-backend/internal/catalog"
	"github.com/andresvillarreal/comprabot-backend/internal/owner"
	"github.com/andresvillarreal/comprabot-backend/pkg/config"
	"github.com/andresvillarreal/comprabot-backend/pkg/db/models"
	pkgerrors "github.com/andresvillarreal/comprabot-backend/pkg/errors"
	"github.com/andresvillarreal/comprabot-backend/pkg/logger"
)

// Service exposes the cart operations driven by chat intents and tool calls.
type Service interface {
	AddItem(ctx context.Context, key owner.Key, input AddItemInput) (*View, error)
	RemoveItem(ctx context.Context, key owner.Key, ref ProductRef) (*View, error)
	UpdateQuantity(ctx context.Context, key owner.Key, ref ProductRef, quantity int) (*View, error)
	GetView(ctx context.Context, key owner.Key) (*View, error)
}

type service struct {
	repo     CartRepository
	products catalog.ProductRepository
	tx       txRunner
	commerce config.CommerceConfig
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, products catalog.ProductRepository, tx txRunner, commerce config.CommerceConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		products: products,
		tx:       tx,
		commerce: commerce,
		logg:     logg,
	}, nil
}

// ProductRef names a product either by ID or by the (partial) name used in
// chat. ID wins when both are present.
type ProductRef struct {
	ProductID   uuid.UUID
	ProductName string
}

func (p ProductRef) isZero() bool {
	return p.ProductID == uuid.Nil && strings.TrimSpace(p.ProductName) == ""
}

// AddItemInput is the payload for adding (or stacking) a cart line.
type AddItemInput struct {
	Ref      ProductRef
	Quantity int
}

// Line is one priced cart row in a view.
type Line struct {
	ProductID    uuid.UUID `json:"productId"`
	Name         string    `json:"name"`
	UnitPriceUSD string    `json:"unitPriceUsd"`
	Quantity     int       `json:"quantity"`
	LineTotalUSD string    `json:"lineTotalUsd"`
}

// View is the fully-priced cart presented to the user. Totals apply the
// current tax and FX configuration at read time.
type View struct {
	CartID        *uuid.UUID `json:"cartId,omitempty"`
	Items         []Line     `json:"items"`
	SubtotalUSD   string     `json:"subtotalUsd"`
	TaxPercent    string     `json:"taxPercent"`
	TaxUSD        string     `json:"taxUsd"`
	TotalUSD      string     `json:"totalUsd"`
	FXRate        string     `json:"fxRate"`
	TotalLocal    string     `json:"totalLocal"`
	LocalCurrency string     `json:"localCurrency"`
}

// IsEmpty reports whether the view carries no lines.
func (v *View) IsEmpty() bool {
	return v == nil || len(v.Items) == 0
}

// AddItem stacks quantity onto an existing line or creates one, snapshotting
// the current catalog price on first add.
func (s *service) AddItem(ctx context.Context, key owner.Key, input AddItemInput) (*View, error) {
	if key.IsZero() {
		return nil, owner.ErrMissingOwner
	}
	if input.Ref.isZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product reference is required")
	}
	quantity := input.Quantity
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		products := s.products.WithTx(tx)

		product, err := s.resolveProduct(ctx, products, input.Ref)
		if err != nil {
			return err
		}

		record, err := s.ensureActiveCart(ctx, repo, key)
		if err != nil {
			return err
		}

		item, err := repo.FindItem(ctx, record.ID, product.ID)
		switch {
		case err == nil:
			return repo.UpdateItemQuantity(ctx, item.ID, item.Quantity+quantity)
		case errors.Is(err, gorm.ErrRecordNotFound):
			return repo.CreateItem(ctx, &models.CartItem{
				ID:             uuid.New(),
				CartID:         record.ID,
				ProductID:      product.ID,
				ProductName:    product.Name,
				UnitPriceCents: product.PriceCents,
				Quantity:       quantity,
			})
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOwnerKey(ctx, key.String())
	s.logg.Info(s.logg.WithField(ctx, "quantity", quantity), "cart item added")
	return s.GetView(ctx, key)
}

// RemoveItem deletes a line. Removing an absent product is a no-op.
func (s *service) RemoveItem(ctx context.Context, key owner.Key, ref ProductRef) (*View, error) {
	if key.IsZero() {
		return nil, owner.ErrMissingOwner
	}
	if ref.isZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product reference is required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record, err := repo.FindActiveByOwner(ctx, key.String())
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		item, found := s.matchLine(record.Items, ref)
		if !found {
			return nil
		}
		return repo.DeleteItem(ctx, item.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithOwnerKey(ctx, key.String()), "cart item removed")
	return s.GetView(ctx, key)
}

// UpdateQuantity sets a line's quantity. Zero or negative removes the line.
func (s *service) UpdateQuantity(ctx context.Context, key owner.Key, ref ProductRef, quantity int) (*View, error) {
	if key.IsZero() {
		return nil, owner.ErrMissingOwner
	}
	if ref.isZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product reference is required")
	}
	if quantity <= 0 {
		return s.RemoveItem(ctx, key, ref)
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record, err := repo.FindActiveByOwner(ctx, key.String())
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart is empty")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		item, found := s.matchLine(record.Items, ref)
		if !found {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart")
		}
		return repo.UpdateItemQuantity(ctx, item.ID, quantity)
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithOwnerKey(ctx, key.String()), "cart item quantity updated")
	return s.GetView(ctx, key)
}

// GetView prices the active cart with the current tax and FX configuration.
// An owner with no active cart gets an empty view, not an error.
func (s *service) GetView(ctx context.Context, key owner.Key) (*View, error) {
	if key.IsZero() {
		return nil, owner.ErrMissingOwner
	}

	record, err := s.repo.FindActiveByOwner(ctx, key.String())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.emptyView(), nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return s.buildView(record), nil
}

func (s *service) resolveProduct(ctx context.Context, products catalog.ProductRepository, ref ProductRef) (*models.Product, error) {
	var (
		row *models.Product
		err error
	)
	if ref.ProductID != uuid.Nil {
		row, err = products.FindByID(ctx, ref.ProductID)
	} else {
		row, err = products.FindByName(ctx, strings.TrimSpace(ref.ProductName))
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !row.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return row, nil
}

func (s *service) ensureActiveCart(ctx context.Context, repo CartRepository, key owner.Key) (*models.Cart, error) {
	record, err := repo.FindActiveByOwner(ctx, key.String())
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return repo.Create(ctx, &models.Cart{ID: uuid.New(), OwnerKey: key.String()})
}

func (s *service) matchLine(items []models.CartItem, ref ProductRef) (*models.CartItem, bool) {
	if ref.ProductID != uuid.Nil {
		for i := range items {
			if items[i].ProductID == ref.ProductID {
				return &items[i], true
			}
		}
		return nil, false
	}
	needle := strings.ToLower(strings.TrimSpace(ref.ProductName))
	for i := range items {
		if strings.Contains(strings.ToLower(items[i].ProductName), needle) {
			return &items[i], true
		}
	}
	return nil, false
}

func (s *service) emptyView() *View {
	totals := ComputeTotals(nil, s.commerce.TaxPercent(), s.commerce.FXRate())
	return s.renderView(nil, nil, totals)
}

func (s *service) buildView(record *models.Cart) *View {
	totals := ComputeTotals(record.Items, s.commerce.TaxPercent(), s.commerce.FXRate())
	return s.renderView(&record.ID, record.Items, totals)
}

func (s *service) renderView(cartID *uuid.UUID, items []models.CartItem, totals Totals) *View {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{
			ProductID:    item.ProductID,
			Name:         item.ProductName,
			UnitPriceUSD: catalog.FormatUSD(item.UnitPriceCents),
			Quantity:     item.Quantity,
			LineTotalUSD: catalog.FormatUSD(item.UnitPriceCents * item.Quantity),
		})
	}
	return &View{
		CartID:        cartID,
		Items:         lines,
		SubtotalUSD:   totals.SubtotalUSD.StringFixed(2),
		TaxPercent:    totals.TaxPercent.String(),
		TaxUSD:        totals.TaxUSD.StringFixed(2),
		TotalUSD:      totals.TotalUSD.StringFixed(2),
		FXRate:        totals.FXRate.String(),
		TotalLocal:    totals.TotalLocal.StringFixed(2),
		LocalCurrency: s.commerce.LocalCurrency,
	}
}
