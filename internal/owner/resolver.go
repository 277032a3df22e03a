package owner

import (
	"strings"

	pkgerrors "github.com/andresvillarreal/comprabot-backend/pkg/errors"
)

// Key is the stable identifier scoping carts and orders to one principal.
// Exactly one active cart exists per key at any time.
type Key string

// String implements fmt.Stringer.
func (k Key) String() string {
	return string(k)
}

// IsZero reports whether no owner was resolved.
func (k Key) IsZero() bool {
	return k == ""
}

// Input carries the identity candidates available on a request.
type Input struct {
	CustomerID        string
	SessionID         string
	ExternalChannelID string
}

// ErrMissingOwner is returned when an owner-requiring operation has no
// resolvable principal.
var ErrMissingOwner = pkgerrors.New(pkgerrors.CodeUnauthorized, "no cart owner could be resolved")

// Resolve maps the request identity to a single owner key. Precedence:
// authenticated customer, then anonymous session, then external channel.
func Resolve(in Input) (Key, error) {
	if key := ResolveOptional(in); !key.IsZero() {
		return key, nil
	}
	return "", ErrMissingOwner
}

// ResolveOptional resolves like Resolve but returns the zero Key instead of
// an error. Read-only informational intents may proceed without an owner.
func ResolveOptional(in Input) Key {
	if id := strings.TrimSpace(in.CustomerID); id != "" {
		return Key("customer:" + id)
	}
	if id := strings.TrimSpace(in.SessionID); id != "" {
		return Key("session:" + id)
	}
	if id := strings.TrimSpace(in.ExternalChannelID); id != "" {
		return Key("channel:" + id)
	}
	return ""
}
