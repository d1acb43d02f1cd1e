package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/storekite/checkout-core/internal/aws"
	"github.com/storekite/checkout-core/internal/email"
	"github.com/storekite/checkout-core/internal/orders"
	"github.com/storekite/checkout-core/internal/payref"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	payrefStore := payref.NewStore(clients.DynamoDB, env("PAYMENT_REFS_TABLE", "payment-refs"), 48*time.Hour)
	orderStore := orders.NewStore(clients.DynamoDB, env("ORDERS_TABLE", "orders"))
	sender := email.NewSender(clients.SES, env("EMAIL_FROM", "orders@storekite.example"))

	p := NewProcessor(payrefStore, orderStore, sender)

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if os.Getenv("RUN_LOCAL") == "true" {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"gateway_order_id":"order_local1","order_id":"local-order-1","email":"test@example.com"}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{Body: testBody},
			},
		}
		if err := p.Handle(context.Background(), event); err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		return
	}

	lambda.Start(p.Handle)
}
