package messaging

import (
	"context"

	"github.com/andresvillarreal/comprabot-backend/pkg/logger"
)

// LogDispatcher writes token messages to the application log instead of a
// delivery rail. Used in dev when no Pub/Sub project is configured.
type LogDispatcher struct {
	logg *logger.Logger
}

// NewLogDispatcher builds the log-only dispatcher.
func NewLogDispatcher(logg *logger.Logger) *LogDispatcher {
	return &LogDispatcher{logg: logg}
}

// DispatchToken logs the token destination and expiry. The token value itself
// is logged too; this dispatcher must never run in prod.
func (d *LogDispatcher) DispatchToken(ctx context.Context, msg TokenMessage) error {
	if d.logg == nil {
		return nil
	}
	ctx = d.logg.WithFields(ctx, map[string]any{
		"order_id":    msg.OrderID.String(),
		"channel":     msg.Channel.String(),
		"destination": msg.Destination,
		"token":       msg.Token,
		"expires_at":  msg.ExpiresAt,
	})
	d.logg.Info(ctx, "token dispatch (log only)")
	return nil
}
