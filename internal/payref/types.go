package payref

import "time"

// Status values for payment-reference entries
const (
	StatusIntentCreated = "INTENT_CREATED"
	StatusPaid          = "PAID"
	StatusFailed        = "FAILED"
)

// Record is the shape persisted in the payment-references DynamoDB table.
// It is keyed by the gateway's order id, which makes it the natural
// idempotency record for verification callbacks: the PAID transition can
// happen exactly once.
type Record struct {
	GatewayOrderID    string    `dynamodbav:"gateway_order_id"` // PK
	Status            string    `dynamodbav:"status"`
	Receipt           string    `dynamodbav:"receipt,omitempty"`
	QuotedAmountMinor int64     `dynamodbav:"quoted_amount_minor,omitempty"` // amount quoted to the gateway at intent time
	Currency          string    `dynamodbav:"currency,omitempty"`
	OrderID           string    `dynamodbav:"order_id,omitempty"` // set when PAID
	ResponseBody      string    `dynamodbav:"response_body,omitempty"`
	EmailSent         bool      `dynamodbav:"email_sent,omitempty"`
	Note              string    `dynamodbav:"note,omitempty"`
	CreatedAt         time.Time `dynamodbav:"created_at"`
	UpdatedAt         time.Time `dynamodbav:"updated_at"`
	ExpiresAt         int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}
