package enums

import "fmt"

// PaymentMethod enumerates the offline payment rails the storefront accepts.
type PaymentMethod string

const (
	PaymentMethodPagoMovil     PaymentMethod = "pago_movil"
	PaymentMethodTransferencia PaymentMethod = "transferencia"
	PaymentMethodZelle         PaymentMethod = "zelle"
	PaymentMethodEfectivo      PaymentMethod = "efectivo"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodPagoMovil,
	PaymentMethodTransferencia,
	PaymentMethodZelle,
	PaymentMethodEfectivo,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
