package main

// EmailMessage is the payload sent from API -> SQS -> worker after an order
// commits.
type EmailMessage struct {
	GatewayOrderID string `json:"gateway_order_id"`
	OrderID        string `json:"order_id"`
	Email          string `json:"email"`
}
