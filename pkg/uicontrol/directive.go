package uicontrol

import "fmt"

// Kind is the closed vocabulary of view directives the orchestrator may emit.
// Clients render views from directives only, never by sniffing message text.
type Kind string

const (
	KindOpenCart           Kind = "open_cart"
	KindShowCart           Kind = "show_cart"
	KindOpenAddressForm    Kind = "open_address_form"
	KindShowProducts       Kind = "show_products"
	KindShowPaymentMethods Kind = "show_payment_methods"
	KindAwaitToken         Kind = "await_token"
	KindPaymentSubmitted   Kind = "payment_submitted"
	KindAddToCartVisual    Kind = "add_to_cart_visual"
	KindShowTracking       Kind = "show_tracking"
)

var validKinds = []Kind{
	KindOpenCart,
	KindShowCart,
	KindOpenAddressForm,
	KindShowProducts,
	KindShowPaymentMethods,
	KindAwaitToken,
	KindPaymentSubmitted,
	KindAddToCartVisual,
	KindShowTracking,
}

// IsValid reports whether the value is a known directive kind.
func (k Kind) IsValid() bool {
	for _, candidate := range validKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ProductPayload rides on add_to_cart_visual so the client can animate the
// exact product that was just added.
type ProductPayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	PriceUSD  string `json:"price_usd"`
}

// TrackingPayload rides on show_tracking.
type TrackingPayload struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Directive is one typed UI instruction. At most one payload field is set,
// matching the kind.
type Directive struct {
	Kind     Kind             `json:"kind"`
	Product  *ProductPayload  `json:"product,omitempty"`
	Tracking *TrackingPayload `json:"tracking,omitempty"`
}

// New builds a payload-free directive.
func New(kind Kind) *Directive {
	return &Directive{Kind: kind}
}

// AddToCartVisual builds the directive animating a product into the cart.
func AddToCartVisual(product ProductPayload) *Directive {
	return &Directive{Kind: KindAddToCartVisual, Product: &product}
}

// ShowTracking builds the order-tracking directive.
func ShowTracking(status, detail string) *Directive {
	return &Directive{Kind: KindShowTracking, Tracking: &TrackingPayload{Status: status, Detail: detail}}
}

// Validate checks that the payload matches the directive kind.
func (d *Directive) Validate() error {
	if d == nil {
		return fmt.Errorf("directive is nil")
	}
	if !d.Kind.IsValid() {
		return fmt.Errorf("unknown directive kind %q", d.Kind)
	}
	if d.Kind == KindAddToCartVisual && d.Product == nil {
		return fmt.Errorf("add_to_cart_visual requires a product payload")
	}
	if d.Kind == KindShowTracking && d.Tracking == nil {
		return fmt.Errorf("show_tracking requires a tracking payload")
	}
	return nil
}
