package middleware

import (
	"context"

	"github.com/andresvillarreal/comprabot-backend/internal/owner"
)

type contextKey string

const (
	ctxCustomerID contextKey = "customer_id"
	ctxSessionID  contextKey = "session_id"
	ctxChannelID  contextKey = "channel_id"
)

func CustomerIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCustomerID).(string); ok {
		return v
	}
	return ""
}

func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}

func ChannelIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxChannelID).(string); ok {
		return v
	}
	return ""
}

// WithCustomerID injects the authenticated customer identifier.
func WithCustomerID(ctx context.Context, customerID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCustomerID, customerID)
}

// WithSessionID injects the anonymous session identifier.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSessionID, sessionID)
}

// WithChannelID injects the external channel identifier (e.g. WhatsApp number).
func WithChannelID(ctx context.Context, channelID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxChannelID, channelID)
}

// IdentityFromContext bundles the identity candidates for owner resolution.
func IdentityFromContext(ctx context.Context) owner.Input {
	return owner.Input{
		CustomerID:        CustomerIDFromContext(ctx),
		SessionID:         SessionIDFromContext(ctx),
		ExternalChannelID: ChannelIDFromContext(ctx),
	}
}
