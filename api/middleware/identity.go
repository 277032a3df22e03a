package middleware

import (
	"net/http"
	"strings"

	"github.com/andresvillarreal/comprabot-backend/api/responses"
	pkgAuth "github.com/andresvillarreal/comprabot-backend/pkg/auth"
	"github.com/andresvillarreal/comprabot-backend/pkg/config"
	pkgerrors "github.com/andresvillarreal/comprabot-backend/pkg/errors"
	"github.com/andresvillarreal/comprabot-backend/pkg/logger"
)

const (
	sessionIDHeader = "X-Session-Id"
	channelIDHeader = "X-Channel-Id"
)

// Identity seeds the request context with whoever the caller claims to be.
// Authenticated customers present a bearer token; anonymous web sessions and
// messaging channels identify themselves through headers. A request may carry
// none of the three and still reach handlers that tolerate missing identity.
func Identity(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
				token := raw
				if strings.HasPrefix(strings.ToLower(token), "bearer ") {
					token = strings.TrimSpace(token[7:])
				}
				if token == "" {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}

				claims, err := pkgAuth.ParseAccessToken(cfg, token)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}

				ctx = WithCustomerID(ctx, claims.CustomerID.String())
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{"customer_id": claims.CustomerID.String()})
				}
			}

			if sessionID := strings.TrimSpace(r.Header.Get(sessionIDHeader)); sessionID != "" {
				ctx = WithSessionID(ctx, sessionID)
			}
			if channelID := strings.TrimSpace(r.Header.Get(channelIDHeader)); channelID != "" {
				ctx = WithChannelID(ctx, channelID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
