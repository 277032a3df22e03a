package enums

import "fmt"

// PaymentSubmissionStatus mirrors the review states shown to back-office staff.
// The literal values are the Spanish labels persisted by the storefront.
type PaymentSubmissionStatus string

const (
	PaymentSubmissionEnRevision PaymentSubmissionStatus = "EN_REVISION"
	PaymentSubmissionAprobado   PaymentSubmissionStatus = "APROBADO"
	PaymentSubmissionRechazado  PaymentSubmissionStatus = "RECHAZADO"
)

var validPaymentSubmissionStatuses = []PaymentSubmissionStatus{
	PaymentSubmissionEnRevision,
	PaymentSubmissionAprobado,
	PaymentSubmissionRechazado,
}

// String implements fmt.Stringer.
func (p PaymentSubmissionStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentSubmissionStatus.
func (p PaymentSubmissionStatus) IsValid() bool {
	for _, candidate := range validPaymentSubmissionStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentSubmissionStatus converts raw input into a PaymentSubmissionStatus.
func ParsePaymentSubmissionStatus(value string) (PaymentSubmissionStatus, error) {
	for _, candidate := range validPaymentSubmissionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment submission status %q", value)
}
