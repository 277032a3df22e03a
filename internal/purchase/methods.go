package purchase

import "github.com/andresvillarreal/comprabot-backend/pkg/enums"

// MethodInfo is one entry of the fixed payment-method catalog shown to the
// user after token validation.
type MethodInfo struct {
	Method       enums.PaymentMethod `json:"method"`
	Label        string              `json:"label"`
	Currency     string              `json:"currency"`
	Instructions string              `json:"instructions"`
}

var methodCatalog = []MethodInfo{
	{
		Method:       enums.PaymentMethodPagoMovil,
		Label:        "Pago Móvil",
		Currency:     "VES",
		Instructions: "Banco de Venezuela, teléfono 0412-0000000, CI V-12.345.678. Envía el número de referencia al finalizar.",
	},
	{
		Method:       enums.PaymentMethodTransferencia,
		Label:        "Transferencia bancaria",
		Currency:     "VES",
		Instructions: "Cuenta corriente 0102-0000-00-0000000000 a nombre de Comercial Andina C.A. Envía el número de referencia.",
	},
	{
		Method:       enums.PaymentMethodZelle,
		Label:        "Zelle",
		Currency:     "USD",
		Instructions: "pagos@comercialandina.com a nombre de Comercial Andina. Envía el nombre del titular y la confirmación.",
	},
	{
		Method:       enums.PaymentMethodEfectivo,
		Label:        "Efectivo contra entrega",
		Currency:     "USD",
		Instructions: "Paga en efectivo al recibir tu pedido. Indica el monto exacto si necesitas cambio.",
	},
}

// Methods returns the payment catalog, optionally filtered to one method.
func Methods(filter enums.PaymentMethod) []MethodInfo {
	if filter == "" {
		out := make([]MethodInfo, len(methodCatalog))
		copy(out, methodCatalog)
		return out
	}
	for _, m := range methodCatalog {
		if m.Method == filter {
			return []MethodInfo{m}
		}
	}
	return nil
}
