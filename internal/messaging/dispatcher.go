package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/andresvillarreal/comprabot-backend/pkg/enums"
)

// TokenMessage is the payload handed to the delivery rail when an OTP is
// issued. The token itself never appears in API responses, only here.
type TokenMessage struct {
	OrderID     uuid.UUID          `json:"orderId"`
	Token       string             `json:"token"`
	Channel     enums.TokenChannel `json:"channel"`
	Destination string             `json:"destination"`
	ExpiresAt   time.Time          `json:"expiresAt"`
}

// Dispatcher delivers OTP messages out of band. Delivery failures are the
// caller's concern to log and count; issuance never rolls back on them.
type Dispatcher interface {
	DispatchToken(ctx context.Context, msg TokenMessage) error
}
