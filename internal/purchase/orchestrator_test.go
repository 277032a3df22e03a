package purchase

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/andresvillarreal/comprabot-backend/internal/cart"
	"github.com/andresvillarreal/comprabot-backend/internal/catalog"
	"github.com/andresvillarreal/comprabot-backend/internal/messaging"
	"github.com/andresvillarreal/comprabot-backend/internal/owner"
	"github.com/andresvillarreal/comprabot-backend/internal/token"
	"github.com/andresvillarreal/comprabot-backend/pkg/config"
	"github.com/andresvillarreal/comprabot-backend/pkg/db/models"
	"github.com/andresvillarreal/comprabot-backend/pkg/enums"
	pkgerrors "github.com/andresvillarreal/comprabot-backend/pkg/errors"
	"github.com/andresvillarreal/comprabot-backend/pkg/logger"
	"github.com/andresvillarreal/comprabot-backend/pkg/metrics"
)

type recordingDispatcher struct {
	sent []messaging.TokenMessage
}

func (r *recordingDispatcher) DispatchToken(_ context.Context, msg messaging.TokenMessage) error {
	r.sent = append(r.sent, msg)
	return nil
}

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func setupPurchaseTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schemas := []string{
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  price_cents INTEGER NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  owner_key TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  converted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  owner_key TEXT NOT NULL,
  status TEXT NOT NULL,
  subtotal_usd NUMERIC NOT NULL,
  tax_percent NUMERIC NOT NULL,
  fx_rate NUMERIC NOT NULL,
  total_usd NUMERIC NOT NULL,
  total_local NUMERIC NOT NULL,
  local_currency TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_auth_tokens (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  token TEXT NOT NULL,
  channel TEXT NOT NULL,
  destination TEXT NOT NULL,
  expires_at DATETIME NOT NULL,
  used_at DATETIME,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS payment_submissions (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  method TEXT NOT NULL,
  currency TEXT NOT NULL,
  reference TEXT NOT NULL,
  proof_url TEXT,
  payer_name TEXT,
  payer_phone TEXT,
  status TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, schema := range schemas {
		require.NoError(t, db.Exec(schema).Error)
	}
	return db
}

type purchaseHarness struct {
	db         *gorm.DB
	carts      cart.Service
	orch       Orchestrator
	dispatcher *recordingDispatcher
}

func newPurchaseHarness(t *testing.T) *purchaseHarness {
	t.Helper()

	db := setupPurchaseTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	purchaseMetrics := metrics.NewPurchaseMetrics(nil)
	commerce := config.CommerceConfig{TaxPercentRaw: "16", FXRateRaw: "36.50", LocalCurrency: "VES"}
	tokenCfg := config.TokenConfig{TTLMinutes: 15, DefaultChannel: "whatsapp"}
	tx := gormTxRunner{db: db}

	cartRepo := cart.NewRepository(db)
	cartSvc, err := cart.NewService(cartRepo, catalog.NewRepository(db), tx, commerce, logg)
	require.NoError(t, err)

	dispatcher := &recordingDispatcher{}
	tokens, err := token.NewAuthority(token.NewRepository(db), dispatcher, tokenCfg, logg, purchaseMetrics)
	require.NoError(t, err)

	orch, err := NewOrchestrator(
		NewOrderRepo(db), NewSubmissionRepo(db), cartRepo, tokens,
		tx, commerce, tokenCfg, logg, purchaseMetrics,
	)
	require.NoError(t, err)

	return &purchaseHarness{db: db, carts: cartSvc, orch: orch, dispatcher: dispatcher}
}

func (h *purchaseHarness) seedProduct(t *testing.T, name string, priceCents int) *models.Product {
	t.Helper()

	row := &models.Product{ID: uuid.New(), Name: name, PriceCents: priceCents, IsActive: true}
	require.NoError(t, h.db.Create(row).Error)
	return row
}

func TestStartWithEmptyCart(t *testing.T) {
	h := newPurchaseHarness(t)
	ctx := context.Background()

	_, err := h.orch.Execute(ctx, StepInput{Step: StepStart, OwnerKey: owner.Key("customer:u1")})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	var count int64
	require.NoError(t, h.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestFullHappyPath(t *testing.T) {
	h := newPurchaseHarness(t)
	ctx := context.Background()
	key := owner.Key("customer:u1")

	product := h.seedProduct(t, "Harina PAN", 1000)
	_, err := h.carts.AddItem(ctx, key, cart.AddItemInput{Ref: cart.ProductRef{ProductID: product.ID}, Quantity: 2})
	require.NoError(t, err)

	started, err := h.orch.Execute(ctx, StepInput{Step: StepStart, OwnerKey: key})
	require.NoError(t, err)
	require.NotNil(t, started.Order)
	assert.Equal(t, "20.00", started.Order.SubtotalUSD)
	assert.Equal(t, "23.20", started.Order.TotalUSD)
	assert.Equal(t, "846.80", started.Order.TotalLocal)
	assert.Equal(t, enums.OrderStatusPendingConfirmation, started.Order.Status)

	// the cart is gone once converted
	view, err := h.carts.GetView(ctx, key)
	require.NoError(t, err)
	assert.True(t, view.IsEmpty())

	orderID := started.Order.ID
	sent, err := h.orch.Execute(ctx, StepInput{Step: StepSendToken, OwnerKey: key, OrderID: orderID, Destination: "+584120000000"})
	require.NoError(t, err)
	require.NotNil(t, sent.UI)
	assert.Equal(t, "await_token", string(sent.UI.Kind))
	require.Len(t, h.dispatcher.sent, 1)
	code := h.dispatcher.sent[0].Token
	assert.Len(t, code, 6)

	// wrong token stays in validate_token with a message, no status change
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	res, err := h.orch.Execute(ctx, StepInput{Step: StepValidateToken, OwnerKey: key, OrderID: orderID, Token: wrong})
	require.NoError(t, err)
	assert.Nil(t, res.Order)
	assert.Equal(t, "await_token", string(res.UI.Kind))
	assert.NotEmpty(t, res.Message)

	res, err = h.orch.Execute(ctx, StepInput{Step: StepValidateToken, OwnerKey: key, OrderID: orderID, Token: code})
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.Equal(t, enums.OrderStatusAwaitingPayment, res.Order.Status)
	assert.Equal(t, "show_payment_methods", string(res.UI.Kind))
	assert.NotEmpty(t, res.Methods)

	shown, err := h.orch.Execute(ctx, StepInput{Step: StepShowPayment, OwnerKey: key, OrderID: orderID, Method: "zelle"})
	require.NoError(t, err)
	require.Len(t, shown.Methods, 1)
	assert.Equal(t, enums.PaymentMethodZelle, shown.Methods[0].Method)

	submitted, err := h.orch.Execute(ctx, StepInput{
		Step: StepSubmitPayment, OwnerKey: key, OrderID: orderID,
		Payment: PaymentInput{Method: "pago_movil", Reference: "REF-001"},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentPendingReview, submitted.Order.Status)
	assert.Equal(t, "payment_submitted", string(submitted.UI.Kind))
}

func TestManualOverridePhraseConfirms(t *testing.T) {
	h := newPurchaseHarness(t)
	ctx := context.Background()
	key := owner.Key("session:s1")

	product := h.seedProduct(t, "Malta", 120)
	_, err := h.carts.AddItem(ctx, key, cart.AddItemInput{Ref: cart.ProductRef{ProductID: product.ID}, Quantity: 1})
	require.NoError(t, err)

	started, err := h.orch.Execute(ctx, StepInput{Step: StepStart, OwnerKey: key})
	require.NoError(t, err)

	// no token was ever issued; the phrase alone confirms
	res, err := h.orch.Execute(ctx, StepInput{
		Step: StepValidateToken, OwnerKey: key, OrderID: started.Order.ID, Token: "Sí autorizo",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusAwaitingPayment, res.Order.Status)
}

func TestSubmitPaymentUpserts(t *testing.T) {
	h := newPurchaseHarness(t)
	ctx := context.Background()
	key := owner.Key("customer:u2")

	product := h.seedProduct(t, "Arroz", 180)
	_, err := h.carts.AddItem(ctx, key, cart.AddItemInput{Ref: cart.ProductRef{ProductID: product.ID}, Quantity: 1})
	require.NoError(t, err)

	started, err := h.orch.Execute(ctx, StepInput{Step: StepStart, OwnerKey: key})
	require.NoError(t, err)
	orderID := started.Order.ID

	_, err = h.orch.Execute(ctx, StepInput{Step: StepValidateToken, OwnerKey: key, OrderID: orderID, Token: "si autorizo"})
	require.NoError(t, err)

	_, err = h.orch.Execute(ctx, StepInput{
		Step: StepSubmitPayment, OwnerKey: key, OrderID: orderID,
		Payment: PaymentInput{Method: "transferencia", Reference: "REF-1"},
	})
	require.NoError(t, err)

	_, err = h.orch.Execute(ctx, StepInput{
		Step: StepSubmitPayment, OwnerKey: key, OrderID: orderID,
		Payment: PaymentInput{Method: "zelle", Reference: "REF-2"},
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, h.db.Model(&models.PaymentSubmission{}).Where("order_id = ?", orderID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	submissions := NewSubmissionRepo(h.db)
	row, err := submissions.FindByOrder(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "REF-2", row.Reference)
	assert.Equal(t, enums.PaymentMethodZelle, row.Method)

	row, err = submissions.FindByOrder(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestSubmitPaymentRequiresReference(t *testing.T) {
	h := newPurchaseHarness(t)
	ctx := context.Background()
	key := owner.Key("customer:u3")

	product := h.seedProduct(t, "Azúcar", 140)
	_, err := h.carts.AddItem(ctx, key, cart.AddItemInput{Ref: cart.ProductRef{ProductID: product.ID}, Quantity: 1})
	require.NoError(t, err)

	started, err := h.orch.Execute(ctx, StepInput{Step: StepStart, OwnerKey: key})
	require.NoError(t, err)
	_, err = h.orch.Execute(ctx, StepInput{Step: StepValidateToken, OwnerKey: key, OrderID: started.Order.ID, Token: "si autorizo"})
	require.NoError(t, err)

	_, err = h.orch.Execute(ctx, StepInput{
		Step: StepSubmitPayment, OwnerKey: key, OrderID: started.Order.ID,
		Payment: PaymentInput{Method: "zelle"},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestOrderSnapshotIsImmutable(t *testing.T) {
	h := newPurchaseHarness(t)
	ctx := context.Background()
	key := owner.Key("customer:u4")

	product := h.seedProduct(t, "Café", 520)
	_, err := h.carts.AddItem(ctx, key, cart.AddItemInput{Ref: cart.ProductRef{ProductID: product.ID}, Quantity: 2})
	require.NoError(t, err)

	started, err := h.orch.Execute(ctx, StepInput{Step: StepStart, OwnerKey: key})
	require.NoError(t, err)

	// catalog changes after snapshot must not leak into the order
	require.NoError(t, h.db.Model(&models.Product{}).Where("id = ?", product.ID).Update("price_cents", 9999).Error)

	var stored models.Order
	require.NoError(t, h.db.Preload("Items").Where("id = ?", started.Order.ID).First(&stored).Error)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 520, stored.Items[0].UnitPriceCents)
	assert.Equal(t, "10.40", stored.SubtotalUSD.StringFixed(2))
}

func TestCancelBeforeApproval(t *testing.T) {
	h := newPurchaseHarness(t)
	ctx := context.Background()
	key := owner.Key("customer:u5")

	product := h.seedProduct(t, "Malta", 120)
	_, err := h.carts.AddItem(ctx, key, cart.AddItemInput{Ref: cart.ProductRef{ProductID: product.ID}, Quantity: 1})
	require.NoError(t, err)

	started, err := h.orch.Execute(ctx, StepInput{Step: StepStart, OwnerKey: key})
	require.NoError(t, err)

	res, err := h.orch.Execute(ctx, StepInput{Step: StepCancel, OwnerKey: key, OrderID: started.Order.ID})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, res.Order.Status)

	// cancelled orders cannot be confirmed
	_, err = h.orch.Execute(ctx, StepInput{Step: StepValidateToken, OwnerKey: key, OrderID: started.Order.ID, Token: "si autorizo"})
	require.Error(t, err)
}

func TestOrderHiddenFromOtherOwners(t *testing.T) {
	h := newPurchaseHarness(t)
	ctx := context.Background()
	key := owner.Key("customer:u6")

	product := h.seedProduct(t, "Harina", 250)
	_, err := h.carts.AddItem(ctx, key, cart.AddItemInput{Ref: cart.ProductRef{ProductID: product.ID}, Quantity: 1})
	require.NoError(t, err)

	started, err := h.orch.Execute(ctx, StepInput{Step: StepStart, OwnerKey: key})
	require.NoError(t, err)

	_, err = h.orch.Execute(ctx, StepInput{Step: StepSendToken, OwnerKey: owner.Key("customer:intruder"), OrderID: started.Order.ID})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
