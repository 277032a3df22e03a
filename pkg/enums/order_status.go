package enums

import "fmt"

// OrderStatus follows the purchase-flow lifecycle. Cancellation is reachable
// from any state before approval.
type OrderStatus string

const (
	OrderStatusPendingConfirmation  OrderStatus = "pending_confirmation"
	OrderStatusAwaitingPayment      OrderStatus = "awaiting_payment"
	OrderStatusPaymentPendingReview OrderStatus = "payment_pending_review"
	OrderStatusApproved             OrderStatus = "approved"
	OrderStatusRejected             OrderStatus = "rejected"
	OrderStatusCancelled            OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingConfirmation,
	OrderStatusAwaitingPayment,
	OrderStatusPaymentPendingReview,
	OrderStatusApproved,
	OrderStatusRejected,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// CanCancel reports whether an order in this status may still be cancelled.
func (o OrderStatus) CanCancel() bool {
	switch o {
	case OrderStatusPendingConfirmation, OrderStatusAwaitingPayment, OrderStatusPaymentPendingReview:
		return true
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
