package orders

import "time"

// Order statuses. An order is created as PENDING by the payment verifier and
// only moves forward from there; it never returns to PENDING.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// Payment statuses
const (
	PaymentStatusPaid   = "paid"
	PaymentStatusFailed = "failed"
)

// Address is the shipping address snapshot stored with the order.
type Address struct {
	Name       string `dynamodbav:"name,omitempty" json:"name,omitempty"`
	Line1      string `dynamodbav:"line1" json:"line1"`
	Line2      string `dynamodbav:"line2,omitempty" json:"line2,omitempty"`
	City       string `dynamodbav:"city" json:"city"`
	State      string `dynamodbav:"state,omitempty" json:"state,omitempty"`
	PostalCode string `dynamodbav:"postal_code" json:"postalCode"`
	Country    string `dynamodbav:"country,omitempty" json:"country,omitempty"`
	Phone      string `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
}

// LineItem is an immutable snapshot of a product at purchase time. Later
// changes to the product's price or offer never alter a placed order.
type LineItem struct {
	ProductID         string            `dynamodbav:"product_id" json:"productId"`
	Name              string            `dynamodbav:"name" json:"name"`
	Quantity          int               `dynamodbav:"quantity" json:"quantity"`
	VariantAttributes map[string]string `dynamodbav:"variant_attributes,omitempty" json:"variantAttributes,omitempty"`
	UnitPrice         float64           `dynamodbav:"unit_price" json:"unitPrice"` // price paid per unit, after offer
	OriginalPrice     float64           `dynamodbav:"original_price" json:"originalPrice"`
	OfferDiscount     float64           `dynamodbav:"offer_discount" json:"offerDiscount"` // per unit
	Subtotal          float64           `dynamodbav:"subtotal" json:"subtotal"`
}

// Order represents the item stored in the orders DynamoDB table.
type Order struct {
	OrderID          string     `dynamodbav:"order_id" json:"orderId"` // PK
	UserID           string     `dynamodbav:"user_id,omitempty" json:"userId,omitempty"`
	CustomerName     string     `dynamodbav:"customer_name,omitempty" json:"customerName,omitempty"`
	Email            string     `dynamodbav:"email,omitempty" json:"email,omitempty"`
	Items            []LineItem `dynamodbav:"items" json:"items"`
	ItemsTotal       float64    `dynamodbav:"items_total" json:"itemsTotal"`
	Discount         float64    `dynamodbav:"discount" json:"discount"` // sum of item-level offer discounts
	CouponCode       string     `dynamodbav:"coupon_code,omitempty" json:"couponCode,omitempty"`
	CouponType       string     `dynamodbav:"coupon_type,omitempty" json:"couponType,omitempty"`
	CouponValue      float64    `dynamodbav:"coupon_value,omitempty" json:"couponValue,omitempty"`
	CouponDiscount   float64    `dynamodbav:"coupon_discount" json:"couponDiscount"`
	TaxAmount        float64    `dynamodbav:"tax_amount" json:"taxAmount"`
	DeliveryFee      float64    `dynamodbav:"delivery_fee" json:"deliveryFee"`
	FinalTotal       float64    `dynamodbav:"final_total" json:"finalTotal"`
	PaymentMethod    string     `dynamodbav:"payment_method" json:"paymentMethod"`
	PaymentStatus    string     `dynamodbav:"payment_status" json:"paymentStatus"`
	GatewayOrderID   string     `dynamodbav:"gateway_order_id" json:"gatewayOrderId"`
	GatewayPaymentID string     `dynamodbav:"gateway_payment_id" json:"gatewayPaymentId"`
	GatewaySignature string     `dynamodbav:"gateway_signature,omitempty" json:"-"`
	ShippingAddress  Address    `dynamodbav:"shipping_address" json:"shippingAddress"`
	Status           string     `dynamodbav:"status" json:"status"`
	CreatedAt        time.Time  `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `dynamodbav:"updated_at" json:"updatedAt"`
}
