package cart

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/andresvillarreal/comprabot-backend/internal/catalog"
	"github.com/andresvillarreal/comprabot-backend/internal/owner"
	"github.com/andresvillarreal/comprabot-backend/pkg/config"
	"github.com/andresvillarreal/comprabot-backend/pkg/db/models"
	pkgerrors "github.com/andresvillarreal/comprabot-backend/pkg/errors"
	"github.com/andresvillarreal/comprabot-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  price_cents INTEGER NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	carts := `
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  owner_key TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  converted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	cartItems := `
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (cart_id, product_id)
);`
	require.NoError(t, db.Exec(products).Error)
	require.NoError(t, db.Exec(carts).Error)
	require.NoError(t, db.Exec(cartItems).Error)
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	commerce := config.CommerceConfig{
		TaxPercentRaw: "16",
		FXRateRaw:     "36.50",
		LocalCurrency: "VES",
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	svc, err := NewService(NewRepository(db), catalog.NewRepository(db), gormTxRunner{db: db}, commerce, logg)
	require.NoError(t, err)
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, name string, priceCents int) *models.Product {
	t.Helper()

	row := &models.Product{
		ID:         uuid.New(),
		Name:       name,
		PriceCents: priceCents,
		IsActive:   true,
	}
	require.NoError(t, db.Create(row).Error)
	return row
}

func TestAddItemCreatesCartAndSnapshotsPrice(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	key := owner.Key("session:s1")

	product := seedProduct(t, db, "Harina PAN 1kg", 250)

	view, err := svc.AddItem(ctx, key, AddItemInput{Ref: ProductRef{ProductID: product.ID}, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.Equal(t, "2.50", view.Items[0].UnitPriceUSD)
	assert.Equal(t, "5.00", view.Items[0].LineTotalUSD)

	// a later catalog price change must not touch the snapshot
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", product.ID).Update("price_cents", 999).Error)

	view, err = svc.GetView(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "2.50", view.Items[0].UnitPriceUSD)
}

func TestAddItemStacksQuantity(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	key := owner.Key("session:s1")

	product := seedProduct(t, db, "Malta", 120)

	_, err := svc.AddItem(ctx, key, AddItemInput{Ref: ProductRef{ProductID: product.ID}, Quantity: 2})
	require.NoError(t, err)
	view, err := svc.AddItem(ctx, key, AddItemInput{Ref: ProductRef{ProductID: product.ID}, Quantity: 3})
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
}

func TestAddItemByName(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	key := owner.Key("channel:+584120000000")

	seedProduct(t, db, "Café molido 500g", 520)

	view, err := svc.AddItem(ctx, key, AddItemInput{Ref: ProductRef{ProductName: "café molido"}, Quantity: 1})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.Items[0].Quantity)
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	key := owner.Key("session:s1")

	product := seedProduct(t, db, "Lentejas", 160)

	for _, quantity := range []int{0, -1} {
		_, err := svc.AddItem(ctx, key, AddItemInput{Ref: ProductRef{ProductID: product.ID}, Quantity: quantity})
		require.Error(t, err)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	}

	var count int64
	require.NoError(t, db.Model(&models.CartItem{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRemoveAbsentItemIsNoop(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	key := owner.Key("session:s1")

	product := seedProduct(t, db, "Arroz", 180)
	_, err := svc.AddItem(ctx, key, AddItemInput{Ref: ProductRef{ProductID: product.ID}, Quantity: 1})
	require.NoError(t, err)

	view, err := svc.RemoveItem(ctx, key, ProductRef{ProductID: uuid.New()})
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)

	// removing with no cart at all is also a no-op
	view, err = svc.RemoveItem(ctx, owner.Key("session:other"), ProductRef{ProductID: product.ID})
	require.NoError(t, err)
	assert.True(t, view.IsEmpty())
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	key := owner.Key("session:s1")

	product := seedProduct(t, db, "Azúcar", 140)
	_, err := svc.AddItem(ctx, key, AddItemInput{Ref: ProductRef{ProductID: product.ID}, Quantity: 4})
	require.NoError(t, err)

	view, err := svc.UpdateQuantity(ctx, key, ProductRef{ProductID: product.ID}, 0)
	require.NoError(t, err)
	assert.True(t, view.IsEmpty())
}

func TestViewTotalsApplyTaxAndFX(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	key := owner.Key("customer:c1")

	harina := seedProduct(t, db, "Harina PAN", 250)
	malta := seedProduct(t, db, "Malta", 120)

	_, err := svc.AddItem(ctx, key, AddItemInput{Ref: ProductRef{ProductID: harina.ID}, Quantity: 2})
	require.NoError(t, err)
	view, err := svc.AddItem(ctx, key, AddItemInput{Ref: ProductRef{ProductID: malta.ID}, Quantity: 1})
	require.NoError(t, err)

	// subtotal 6.20, tax 16% = 0.99, total 7.19, local 7.19 * 36.50 = 262.44
	assert.Equal(t, "6.20", view.SubtotalUSD)
	assert.Equal(t, "0.99", view.TaxUSD)
	assert.Equal(t, "7.19", view.TotalUSD)
	assert.Equal(t, "262.44", view.TotalLocal)
	assert.Equal(t, "VES", view.LocalCurrency)
}

func TestEmptyViewShape(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newTestService(t, db)

	view, err := svc.GetView(context.Background(), owner.Key("session:fresh"))
	require.NoError(t, err)
	assert.True(t, view.IsEmpty())
	assert.Equal(t, "0.00", view.SubtotalUSD)
	assert.Equal(t, "0.00", view.TotalUSD)
	assert.Equal(t, "0.00", view.TotalLocal)
	assert.Nil(t, view.CartID)
}
