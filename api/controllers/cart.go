package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/andresvillarreal/comprabot-backend/api/middleware"
	"github.com/andresvillarreal/comprabot-backend/api/responses"
	"github.com/andresvillarreal/comprabot-backend/api/validators"
	cartsvc "github.com/andresvillarreal/comprabot-backend/internal/cart"
	"github.com/andresvillarreal/comprabot-backend/internal/owner"
	pkgerrors "github.com/andresvillarreal/comprabot-backend/pkg/errors"
	"github.com/andresvillarreal/comprabot-backend/pkg/logger"
)

type cartItemRequest struct {
	ProductID   string `json:"product_id" validate:"omitempty,uuid"`
	ProductName string `json:"product_name" validate:"omitempty,max=200"`
	Quantity    int    `json:"quantity" validate:"omitempty,min=1,max=999"`
}

func (r cartItemRequest) toRef() (cartsvc.ProductRef, error) {
	id, err := validators.ParseOptionalUUID("product_id", r.ProductID)
	if err != nil {
		return cartsvc.ProductRef{}, err
	}
	name := validators.SanitizeString(r.ProductName, 200)
	if id == uuid.Nil && name == "" {
		return cartsvc.ProductRef{}, pkgerrors.New(pkgerrors.CodeValidation, "product_id or product_name is required")
	}
	return cartsvc.ProductRef{ProductID: id, ProductName: name}, nil
}

// CartAdd adds a product to the caller's active cart, creating one if needed.
func CartAdd(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := owner.Resolve(middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteToolError(r.Context(), logg, w, err)
			return
		}

		var payload cartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteToolError(r.Context(), logg, w, err)
			return
		}

		ref, err := payload.toRef()
		if err != nil {
			responses.WriteToolError(r.Context(), logg, w, err)
			return
		}

		qty := payload.Quantity
		if qty == 0 {
			qty = 1
		}

		view, err := svc.AddItem(r.Context(), key, cartsvc.AddItemInput{Ref: ref, Quantity: qty})
		if err != nil {
			responses.WriteToolError(r.Context(), logg, w, err)
			return
		}

		responses.WriteTool(w, "Producto agregado al carrito.", view)
	}
}

// CartRemove drops a product line; removing an absent line is not an error.
func CartRemove(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := owner.Resolve(middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteToolError(r.Context(), logg, w, err)
			return
		}

		var payload cartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteToolError(r.Context(), logg, w, err)
			return
		}

		ref, err := payload.toRef()
		if err != nil {
			responses.WriteToolError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.RemoveItem(r.Context(), key, ref)
		if err != nil {
			responses.WriteToolError(r.Context(), logg, w, err)
			return
		}

		responses.WriteTool(w, "Producto eliminado del carrito.", view)
	}
}

// CartUpdateQty sets a line's quantity; zero or negative removes the line.
func CartUpdateQty(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := owner.Resolve(middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteToolError(r.Context(), logg, w, err)
			return
		}

		var payload cartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteToolError(r.Context(), logg, w, err)
			return
		}

		ref, err := payload.toRef()
		if err != nil {
			responses.WriteToolError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.UpdateQuantity(r.Context(), key, ref, payload.Quantity)
		if err != nil {
			responses.WriteToolError(r.Context(), logg, w, err)
			return
		}

		responses.WriteTool(w, "Cantidad actualizada.", view)
	}
}

// CartView returns the caller's active cart, or an empty snapshot.
func CartView(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := owner.Resolve(middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteToolError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetView(r.Context(), key)
		if err != nil {
			responses.WriteToolError(r.Context(), logg, w, err)
			return
		}

		message := "Este es tu carrito."
		if view.IsEmpty() {
			message = "Tu carrito está vacío."
		}
		responses.WriteTool(w, message, view)
	}
}
