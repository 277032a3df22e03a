package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andresvillarreal/comprabot-backend/internal/cart"
	"github.com/andresvillarreal/comprabot-backend/internal/intent"
	"github.com/andresvillarreal/comprabot-backend/internal/owner"
	"github.com/andresvillarreal/comprabot-backend/internal/token"
	"github.com/andresvillarreal/comprabot-backend/pkg/config"
	"github.com/andresvillarreal/comprabot-backend/pkg/db/models"
	"github.com/andresvillarreal/comprabot-backend/pkg/enums"
	pkgerrors "github.com/andresvillarreal/comprabot-backend/pkg/errors"
	"github.com/andresvillarreal/comprabot-backend/pkg/logger"
	"github.com/andresvillarreal/comprabot-backend/pkg/metrics"
	"github.com/andresvillarreal/comprabot-backend/pkg/uicontrol"
)

// Step names accepted by Execute. Each request names its step explicitly;
// nothing is inferred from prior requests.
const (
	StepStart         = "start"
	StepSendToken     = "send_token"
	StepValidateToken = "validate_token"
	StepShowPayment   = "show_payment"
	StepSubmitPayment = "submit_payment"
	StepCancel        = "cancel"
)

// StepInput is one state-machine invocation. OrderID is carried by the client
// between steps; there is no server-side "current order".
type StepInput struct {
	Step        string
	OwnerKey    owner.Key
	OrderID     uuid.UUID
	Token       string
	Channel     string
	Destination string
	Method      string
	Payment     PaymentInput
}

// PaymentInput is the proof-of-payment payload for submit_payment.
type PaymentInput struct {
	Method     string
	Currency   string
	Reference  string
	ProofURL   *string
	PayerName  *string
	PayerPhone *string
}

// OrderSummary is the client view of an order snapshot.
type OrderSummary struct {
	ID            uuid.UUID         `json:"id"`
	Status        enums.OrderStatus `json:"status"`
	SubtotalUSD   string            `json:"subtotalUsd"`
	TaxPercent    string            `json:"taxPercent"`
	TotalUSD      string            `json:"totalUsd"`
	TotalLocal    string            `json:"totalLocal"`
	LocalCurrency string            `json:"localCurrency"`
	Items         []OrderLine       `json:"items"`
}

// OrderLine is one immutable order row.
type OrderLine struct {
	ProductID    uuid.UUID `json:"productId"`
	Name         string    `json:"name"`
	UnitPriceUSD string    `json:"unitPriceUsd"`
	Quantity     int       `json:"quantity"`
}

// StepResult is the synchronous response of one step. Message is user-facing
// Spanish; UI is the directive the client renders from.
type StepResult struct {
	Step    string               `json:"step"`
	Message string               `json:"message,omitempty"`
	UI      *uicontrol.Directive `json:"ui,omitempty"`
	Order   *OrderSummary        `json:"order,omitempty"`
	Methods []MethodInfo         `json:"methods,omitempty"`
}

// Orchestrator drives the purchase state machine.
type Orchestrator interface {
	Execute(ctx context.Context, input StepInput) (*StepResult, error)
}

type orchestrator struct {
	orders      OrderRepository
	submissions SubmissionRepository
	cartRepo    cart.CartRepository
	tokens      token.Authority
	tx          txRunner
	commerce    config.CommerceConfig
	tokenCfg    config.TokenConfig
	logg        *logger.Logger
	purchase    *metrics.PurchaseMetrics
	now         func() time.Time
}

// NewOrchestrator wires the purchase state machine.
func NewOrchestrator(
	orders OrderRepository,
	submissions SubmissionRepository,
	cartRepo cart.CartRepository,
	tokens token.Authority,
	tx txRunner,
	commerce config.CommerceConfig,
	tokenCfg config.TokenConfig,
	logg *logger.Logger,
	purchase *metrics.PurchaseMetrics,
) (Orchestrator, error) {
	if orders == nil || submissions == nil || cartRepo == nil || tokens == nil {
		return nil, fmt.Errorf("order, submission, cart and token collaborators required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &orchestrator{
		orders:      orders,
		submissions: submissions,
		cartRepo:    cartRepo,
		tokens:      tokens,
		tx:          tx,
		commerce:    commerce,
		tokenCfg:    tokenCfg,
		logg:        logg,
		purchase:    purchase,
		now:         time.Now,
	}, nil
}

// Execute dispatches one step. Steps are re-entrant: retrying a step with the
// same orderId either repeats a safe action or fails with a state error, it
// never duplicates an order or a submission.
func (o *orchestrator) Execute(ctx context.Context, input StepInput) (*StepResult, error) {
	started := o.now()
	result, err := o.dispatch(ctx, input)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	o.purchase.ObserveStep(input.Step, outcome, o.now().Sub(started))
	return result, err
}

func (o *orchestrator) dispatch(ctx context.Context, input StepInput) (*StepResult, error) {
	switch input.Step {
	case StepStart:
		return o.start(ctx, input)
	case StepSendToken:
		return o.sendToken(ctx, input)
	case StepValidateToken:
		return o.validateToken(ctx, input)
	case StepShowPayment:
		return o.showPayment(ctx, input)
	case StepSubmitPayment:
		return o.submitPayment(ctx, input)
	case StepCancel:
		return o.cancel(ctx, input)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown step %q", input.Step))
	}
}

// start snapshots the active cart into a new order. The cart is marked
// converted in the same transaction, so a concurrent start for the same owner
// sees either the active cart or nothing.
func (o *orchestrator) start(ctx context.Context, input StepInput) (*StepResult, error) {
	if input.OwnerKey.IsZero() {
		return nil, owner.ErrMissingOwner
	}

	var created *models.Order
	err := o.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := o.cartRepo.WithTx(tx)
		orders := o.orders.WithTx(tx)

		record, err := cartRepo.FindActiveByOwner(ctx, input.OwnerKey.String())
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(record.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
		}

		totals := cart.ComputeTotals(record.Items, o.commerce.TaxPercent(), o.commerce.FXRate())

		order := &models.Order{
			ID:            uuid.New(),
			OwnerKey:      input.OwnerKey.String(),
			Status:        enums.OrderStatusPendingConfirmation,
			SubtotalUSD:   totals.SubtotalUSD,
			TaxPercent:    totals.TaxPercent,
			FXRate:        totals.FXRate,
			TotalUSD:      totals.TotalUSD,
			TotalLocal:    totals.TotalLocal,
			LocalCurrency: o.commerce.LocalCurrency,
		}
		for _, item := range record.Items {
			order.Items = append(order.Items, models.OrderItem{
				ID:             uuid.New(),
				OrderID:        order.ID,
				ProductID:      item.ProductID,
				ProductName:    item.ProductName,
				UnitPriceCents: item.UnitPriceCents,
				Quantity:       item.Quantity,
			})
		}

		if err := orders.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := cartRepo.MarkConverted(ctx, record.ID, o.now()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert cart")
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = o.logg.WithOrderID(o.logg.WithOwnerKey(ctx, input.OwnerKey.String()), created.ID.String())
	o.logg.Info(ctx, "order created from cart")

	summary := summarize(created)
	return &StepResult{
		Step:  StepStart,
		Order: &summary,
		Message: fmt.Sprintf(
			"Tu pedido por $%s (%s %s) fue creado. Te enviaremos un código para confirmarlo.",
			summary.TotalUSD, summary.LocalCurrency, summary.TotalLocal,
		),
	}, nil
}

// sendToken issues a fresh OTP for a pending order. Re-sending is allowed;
// only the newest token is ever validated.
func (o *orchestrator) sendToken(ctx context.Context, input StepInput) (*StepResult, error) {
	order, err := o.loadOwnedOrder(ctx, input)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPendingConfirmation {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting confirmation")
	}

	channel, err := o.resolveChannel(input.Channel)
	if err != nil {
		return nil, err
	}
	destination := strings.TrimSpace(input.Destination)
	if destination == "" {
		destination = o.tokenCfg.DefaultDestination
	}

	if _, err := o.tokens.Issue(ctx, order.ID, channel, destination); err != nil {
		return nil, err
	}

	summary := summarize(order)
	return &StepResult{
		Step:    StepSendToken,
		Order:   &summary,
		Message: "Te enviamos un código de 6 dígitos. Escríbelo aquí para confirmar tu pedido.",
		UI:      uicontrol.New(uicontrol.KindAwaitToken),
	}, nil
}

// validateToken consumes the OTP (or accepts the manual-override phrase) and
// moves the order to awaiting_payment.
func (o *orchestrator) validateToken(ctx context.Context, input StepInput) (*StepResult, error) {
	order, err := o.loadOwnedOrder(ctx, input)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPendingConfirmation {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting confirmation")
	}

	supplied := strings.TrimSpace(input.Token)
	if supplied == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}

	if !intent.IsManualAuthorization(supplied) {
		if err := o.tokens.Validate(ctx, order.ID, supplied); err != nil {
			if msg, ok := tokenFailureMessage(err); ok {
				return &StepResult{
					Step:    StepValidateToken,
					Message: msg,
					UI:      uicontrol.New(uicontrol.KindAwaitToken),
				}, nil
			}
			return nil, err
		}
	} else {
		o.logg.Info(o.logg.WithOrderID(ctx, order.ID.String()), "order confirmed via manual override phrase")
	}

	moved, err := o.orders.TransitionStatus(ctx, order.ID, enums.OrderStatusPendingConfirmation, enums.OrderStatusAwaitingPayment)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting confirmation")
	}
	order.Status = enums.OrderStatusAwaitingPayment

	o.logg.Info(o.logg.WithOrderID(ctx, order.ID.String()), "order confirmed")

	summary := summarize(order)
	return &StepResult{
		Step:    StepValidateToken,
		Order:   &summary,
		Message: "¡Pedido confirmado! Estas son las formas de pago disponibles.",
		UI:      uicontrol.New(uicontrol.KindShowPaymentMethods),
		Methods: Methods(""),
	}, nil
}

// showPayment returns the fixed method catalog for a confirmed order.
func (o *orchestrator) showPayment(ctx context.Context, input StepInput) (*StepResult, error) {
	order, err := o.loadOwnedOrder(ctx, input)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusAwaitingPayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment")
	}

	var filter enums.PaymentMethod
	if raw := strings.TrimSpace(input.Method); raw != "" {
		parsed, err := enums.ParsePaymentMethod(raw)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
		}
		filter = parsed
	}

	summary := summarize(order)
	return &StepResult{
		Step:    StepShowPayment,
		Order:   &summary,
		Message: fmt.Sprintf("Total a pagar: $%s (%s %s).", summary.TotalUSD, summary.LocalCurrency, summary.TotalLocal),
		UI:      uicontrol.New(uicontrol.KindShowPaymentMethods),
		Methods: Methods(filter),
	}, nil
}

// submitPayment upserts the proof of payment and parks the order for review.
// Re-submitting overwrites the pending submission rather than appending.
func (o *orchestrator) submitPayment(ctx context.Context, input StepInput) (*StepResult, error) {
	order, err := o.loadOwnedOrder(ctx, input)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusAwaitingPayment && order.Status != enums.OrderStatusPaymentPendingReview {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment")
	}

	method, err := enums.ParsePaymentMethod(strings.TrimSpace(input.Payment.Method))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}
	reference := strings.TrimSpace(input.Payment.Reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}
	currency := strings.TrimSpace(input.Payment.Currency)
	if currency == "" {
		currency = o.commerce.LocalCurrency
	}

	err = o.tx.WithTx(ctx, func(tx *gorm.DB) error {
		submissions := o.submissions.WithTx(tx)
		orders := o.orders.WithTx(tx)

		if err := submissions.Upsert(ctx, &models.PaymentSubmission{
			ID:         uuid.New(),
			OrderID:    order.ID,
			Method:     method,
			Currency:   currency,
			Reference:  reference,
			ProofURL:   input.Payment.ProofURL,
			PayerName:  input.Payment.PayerName,
			PayerPhone: input.Payment.PayerPhone,
			Status:     enums.PaymentSubmissionEnRevision,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment submission")
		}

		if order.Status == enums.OrderStatusAwaitingPayment {
			moved, err := orders.TransitionStatus(ctx, order.ID, enums.OrderStatusAwaitingPayment, enums.OrderStatusPaymentPendingReview)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
			}
			if !moved {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	order.Status = enums.OrderStatusPaymentPendingReview

	o.logg.Info(o.logg.WithOrderID(ctx, order.ID.String()), "payment submitted for review")

	summary := summarize(order)
	return &StepResult{
		Step:    StepSubmitPayment,
		Order:   &summary,
		Message: "Recibimos tu pago y está en revisión. Te avisaremos cuando sea aprobado.",
		UI:      uicontrol.New(uicontrol.KindPaymentSubmitted),
	}, nil
}

// cancel aborts an order in any pre-approval state.
func (o *orchestrator) cancel(ctx context.Context, input StepInput) (*StepResult, error) {
	order, err := o.loadOwnedOrder(ctx, input)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanCancel() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")
	}

	moved, err := o.orders.TransitionStatus(ctx, order.ID, order.Status, enums.OrderStatusCancelled)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")
	}
	order.Status = enums.OrderStatusCancelled

	o.logg.Info(o.logg.WithOrderID(ctx, order.ID.String()), "order cancelled")

	summary := summarize(order)
	return &StepResult{
		Step:    StepCancel,
		Order:   &summary,
		Message: "Tu pedido fue cancelado.",
		UI:      uicontrol.ShowTracking(order.Status.String(), "Pedido cancelado por el cliente."),
	}, nil
}

func (o *orchestrator) loadOwnedOrder(ctx context.Context, input StepInput) (*models.Order, error) {
	if input.OwnerKey.IsZero() {
		return nil, owner.ErrMissingOwner
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	order, err := o.orders.FindByID(ctx, input.OrderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.OwnerKey != input.OwnerKey.String() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (o *orchestrator) resolveChannel(raw string) (enums.TokenChannel, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		value = o.tokenCfg.DefaultChannel
	}
	channel, err := enums.ParseTokenChannel(value)
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown token channel")
	}
	return channel, nil
}

// tokenFailureMessage maps token validation failures onto the conversational
// replies shown to the user. These stay inside the validate_token step.
func tokenFailureMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, token.ErrTokenNotFound):
		return "Aún no te hemos enviado un código para este pedido. Pide uno nuevo.", true
	case errors.Is(err, token.ErrTokenExpired):
		return "El código expiró. Pide uno nuevo para confirmar tu pedido.", true
	case errors.Is(err, token.ErrTokenAlreadyUsed):
		return "Ese código ya fue utilizado. Pide uno nuevo si necesitas confirmar.", true
	case errors.Is(err, token.ErrTokenMismatch):
		return "El código no coincide. Revísalo e inténtalo otra vez.", true
	}
	return "", false
}

func summarize(order *models.Order) OrderSummary {
	summary := OrderSummary{
		ID:            order.ID,
		Status:        order.Status,
		SubtotalUSD:   order.SubtotalUSD.StringFixed(2),
		TaxPercent:    order.TaxPercent.String(),
		TotalUSD:      order.TotalUSD.StringFixed(2),
		TotalLocal:    order.TotalLocal.StringFixed(2),
		LocalCurrency: order.LocalCurrency,
	}
	for _, item := range order.Items {
		summary.Items = append(summary.Items, OrderLine{
			ProductID:    item.ProductID,
			Name:         item.ProductName,
			UnitPriceUSD: formatCents(item.UnitPriceCents),
			Quantity:     item.Quantity,
		})
	}
	return summary
}

func formatCents(cents int) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
