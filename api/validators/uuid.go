package validators

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/andresvillarreal/comprabot-backend/pkg/errors"
)

// ParseUUID turns a client-supplied identifier into a uuid or a validation error.
func ParseUUID(field, raw string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "identifier is required").WithDetails(map[string]any{"field": field})
	}
	id, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "identifier must be a valid uuid").WithDetails(map[string]any{"field": field})
	}
	return id, nil
}

// ParseOptionalUUID is like ParseUUID but tolerates an empty value.
func ParseOptionalUUID(field, raw string) (uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, nil
	}
	return ParseUUID(field, raw)
}
