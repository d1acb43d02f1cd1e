package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/storekite/checkout-core/internal/orders"
	"github.com/storekite/checkout-core/internal/payref"
)

// EmailSender delivers one HTML email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Processor consumes confirmation-email jobs. SQS delivers at least once, so
// each send is claimed on the payment-reference record before mailing;
// duplicate deliveries lose the claim and are dropped.
type Processor struct {
	payrefs    *payref.Store
	orderStore *orders.Store
	sender     EmailSender
}

// NewProcessor creates a worker processor.
func NewProcessor(payrefs *payref.Store, orderStore *orders.Store, sender EmailSender) *Processor {
	return &Processor{
		payrefs:    payrefs,
		orderStore: orderStore,
		sender:     sender,
	}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Return error: Lambda will retry. If failed too many times, message goes to DLQ.
			log.Printf("worker error: %v", err)
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg EmailMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if msg.GatewayOrderID == "" || msg.OrderID == "" || msg.Email == "" {
		return fmt.Errorf("incomplete email message: %+v", msg)
	}

	claimed, err := p.payrefs.ClaimEmailSend(ctx, msg.GatewayOrderID)
	if err != nil {
		return fmt.Errorf("claim email send: %w", err)
	}
	if !claimed {
		log.Printf("[worker] email for order=%s already sent, skipping", msg.OrderID)
		return nil
	}

	order, err := p.orderStore.Get(ctx, msg.OrderID)
	if err != nil {
		p.releaseClaim(ctx, msg.GatewayOrderID)
		return fmt.Errorf("load order %s: %w", msg.OrderID, err)
	}
	if order == nil {
		p.releaseClaim(ctx, msg.GatewayOrderID)
		return fmt.Errorf("order not found: %s", msg.OrderID)
	}

	subject := fmt.Sprintf("Order confirmed: %s", order.OrderID)
	if err := p.sender.Send(ctx, msg.Email, subject, renderConfirmation(order)); err != nil {
		// release so the SQS retry can claim again
		p.releaseClaim(ctx, msg.GatewayOrderID)
		return fmt.Errorf("send confirmation for order %s: %w", order.OrderID, err)
	}

	log.Printf("[worker] sent confirmation for order=%s to=%s", order.OrderID, msg.Email)
	return nil
}

func (p *Processor) releaseClaim(ctx context.Context, gatewayOrderID string) {
	if err := p.payrefs.ReleaseEmailClaim(ctx, gatewayOrderID); err != nil {
		log.Printf("[worker] failed to release email claim for %s: %v", gatewayOrderID, err)
	}
}

// renderConfirmation builds the confirmation email body.
func renderConfirmation(o *orders.Order) string {
	var b strings.Builder
	name := o.CustomerName
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "<h2>Thanks for your order, %s!</h2>", name)
	fmt.Fprintf(&b, "<p>Order <b>%s</b> has been placed.</p><ul>", o.OrderID)
	for _, it := range o.Items {
		fmt.Fprintf(&b, "<li>%s x %d = %.2f</li>", it.Name, it.Quantity, it.Subtotal)
	}
	fmt.Fprintf(&b, "</ul><p>Total paid: <b>%.2f</b></p>", o.FinalTotal)
	return b.String()
}
