package validation

// CartItem is a single cart line. Prices are never accepted from the client;
// only ids and quantities.
type CartItem struct {
	ProductID         string            `json:"productId" validate:"required"`
	Quantity          int               `json:"quantity" validate:"required,min=1"` // must be >= 1
	VariantAttributes map[string]string `json:"variantAttributes,omitempty"`
}

// Address is the shipping address submitted at checkout.
type Address struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// CreateIntentRequest is the payload for POST /payment/create-order.
// Amount is in major currency units.
type CreateIntentRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// OrderDetails mirrors the pre-validate cart input plus the shipping address
// and the amount the client believes it paid.
type OrderDetails struct {
	Products        []CartItem `json:"products" validate:"required,min=1,dive"` // at least one item
	ShippingAddress Address    `json:"shippingAddress" validate:"required"`
	CouponCode      string     `json:"couponCode,omitempty"`
	CustomerName    string     `json:"customerName,omitempty"`
	Email           string     `json:"email,omitempty" validate:"omitempty,email"`
	PaidAmount      float64    `json:"paidAmount,omitempty" validate:"omitempty,gt=0"`
}

// VerifyPaymentRequest is the gateway callback payload for POST /payment/verify.
// Field names follow the gateway's callback convention.
type VerifyPaymentRequest struct {
	RazorpayOrderID   string       `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string       `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string       `json:"razorpay_signature" validate:"required"`
	OrderDetails      OrderDetails `json:"orderDetails" validate:"required"`
}

// PreValidateRequest is the payload for POST /orders/pre-validate.
type PreValidateRequest struct {
	Products        []CartItem `json:"products" validate:"required,min=1,dive"`
	ShippingAddress *Address   `json:"shippingAddress,omitempty"`
	CouponCode      string     `json:"couponCode,omitempty"`
}
