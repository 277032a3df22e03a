package controllers

import (
	"net/http"

	"github.com/andresvillarreal/comprabot-backend/api/middleware"
	"github.com/andresvillarreal/comprabot-backend/api/responses"
	"github.com/andresvillarreal/comprabot-backend/api/validators"
	"github.com/andresvillarreal/comprabot-backend/internal/owner"
	"github.com/andresvillarreal/comprabot-backend/internal/purchase"
	"github.com/andresvillarreal/comprabot-backend/pkg/logger"
)

type purchaseStepRequest struct {
	Step        string `json:"step" validate:"required,oneof=start send_token validate_token show_payment submit_payment cancel"`
	OrderID     string `json:"order_id" validate:"omitempty,uuid"`
	Token       string `json:"token" validate:"omitempty,max=10"`
	Channel     string `json:"channel" validate:"omitempty,oneof=whatsapp sms email"`
	Destination string `json:"destination" validate:"omitempty,max=200"`
	Method      string `json:"method" validate:"omitempty,max=40"`

	PaymentMethod string  `json:"payment_method" validate:"omitempty,max=40"`
	Currency      string  `json:"currency" validate:"omitempty,len=3"`
	Reference     string  `json:"reference" validate:"omitempty,max=120"`
	ProofURL      *string `json:"proof_url" validate:"omitempty"`
	PayerName     *string `json:"payer_name" validate:"omitempty"`
	PayerPhone    *string `json:"payer_phone" validate:"omitempty"`
}

// PurchaseStep executes one explicit state-machine step. The client carries
// order_id between calls; nothing is inferred from prior requests.
func PurchaseStep(orch purchase.Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := owner.Resolve(middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload purchaseStepRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParseOptionalUUID("order_id", payload.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := orch.Execute(r.Context(), purchase.StepInput{
			Step:        payload.Step,
			OwnerKey:    key,
			OrderID:     orderID,
			Token:       validators.SanitizeString(payload.Token, 10),
			Channel:     payload.Channel,
			Destination: validators.SanitizeString(payload.Destination, 200),
			Method:      validators.SanitizeString(payload.Method, 40),
			Payment: purchase.PaymentInput{
				Method:     validators.SanitizeString(payload.PaymentMethod, 40),
				Currency:   payload.Currency,
				Reference:  validators.SanitizeString(payload.Reference, 120),
				ProofURL:   payload.ProofURL,
				PayerName:  payload.PayerName,
				PayerPhone: payload.PayerPhone,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
