package token

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andresvillarreal/comprabot-backend/internal/messaging"
	"github.com/andresvillarreal/comprabot-backend/pkg/config"
	"github.com/andresvillarreal/comprabot-backend/pkg/db/models"
	"github.com/andresvillarreal/comprabot-backend/pkg/enums"
	pkgerrors "github.com/andresvillarreal/comprabot-backend/pkg/errors"
	"github.com/andresvillarreal/comprabot-backend/pkg/logger"
	"github.com/andresvillarreal/comprabot-backend/pkg/metrics"
)

// Validation failure modes. Handlers map these onto conversational replies,
// so each is a distinct value rather than a formatted message.
var (
	ErrTokenNotFound    = pkgerrors.New(pkgerrors.CodeNotFound, "no token issued for this order")
	ErrTokenExpired     = pkgerrors.New(pkgerrors.CodeValidation, "token expired")
	ErrTokenMismatch    = pkgerrors.New(pkgerrors.CodeValidation, "token does not match")
	ErrTokenAlreadyUsed = pkgerrors.New(pkgerrors.CodeStateConflict, "token already used")
)

var tokenSpace = big.NewInt(1000000)

// Authority issues and validates order confirmation tokens.
type Authority interface {
	Issue(ctx context.Context, orderID uuid.UUID, channel enums.TokenChannel, destination string) (*models.OrderAuthToken, error)
	Validate(ctx context.Context, orderID uuid.UUID, code string) error
}

type authority struct {
	repo       TokenRepository
	dispatcher messaging.Dispatcher
	cfg        config.TokenConfig
	logg       *logger.Logger
	purchase   *metrics.PurchaseMetrics
	now        func() time.Time
}

// NewAuthority builds the token authority.
func NewAuthority(repo TokenRepository, dispatcher messaging.Dispatcher, cfg config.TokenConfig, logg *logger.Logger, purchase *metrics.PurchaseMetrics) (Authority, error) {
	if repo == nil {
		return nil, fmt.Errorf("token repository required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("token dispatcher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &authority{
		repo:       repo,
		dispatcher: dispatcher,
		cfg:        cfg,
		logg:       logg,
		purchase:   purchase,
		now:        time.Now,
	}, nil
}

// Issue generates a fresh 6-digit token, persists it, and hands it to the
// dispatch rail. Re-issuing simply appends a newer row; older tokens become
// unreachable because validation always targets the newest one. A dispatch
// failure is logged and counted but does not undo issuance.
func (a *authority) Issue(ctx context.Context, orderID uuid.UUID, channel enums.TokenChannel, destination string) (*models.OrderAuthToken, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !channel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown token channel")
	}

	code, err := generateCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate token")
	}

	record := &models.OrderAuthToken{
		ID:          uuid.New(),
		OrderID:     orderID,
		Token:       code,
		Channel:     channel,
		Destination: destination,
		ExpiresAt:   a.now().Add(a.cfg.TTL()),
	}
	if err := a.repo.Create(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist token")
	}

	ctx = a.logg.WithOrderID(ctx, orderID.String())
	if err := a.dispatcher.DispatchToken(ctx, messaging.TokenMessage{
		OrderID:     orderID,
		Token:       record.Token,
		Channel:     channel,
		Destination: destination,
		ExpiresAt:   record.ExpiresAt,
	}); err != nil {
		a.purchase.IncDispatchFailure()
		a.logg.Error(ctx, "token dispatch failed", err)
	} else {
		a.logg.Info(a.logg.WithField(ctx, "channel", channel.String()), "token dispatched")
	}

	return record, nil
}

// Validate checks the submitted code against the newest token for the order
// and consumes it on success. A token at its exact expiry instant is already
// expired. The consume is a compare-and-set, so concurrent submissions of the
// same valid code let exactly one caller through.
func (a *authority) Validate(ctx context.Context, orderID uuid.UUID, code string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	record, err := a.repo.FindLatestByOrder(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTokenNotFound
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load token")
	}

	if record.UsedAt != nil {
		return ErrTokenAlreadyUsed
	}
	now := a.now()
	if !now.Before(record.ExpiresAt) {
		return ErrTokenExpired
	}
	if record.Token != code {
		return ErrTokenMismatch
	}

	consumed, err := a.repo.Consume(ctx, record.ID, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume token")
	}
	if !consumed {
		return ErrTokenAlreadyUsed
	}

	a.logg.Info(a.logg.WithOrderID(ctx, orderID.String()), "token validated")
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, tokenSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
