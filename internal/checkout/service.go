package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storekite/checkout-core/internal/catalog"
	"github.com/storekite/checkout-core/internal/coupon"
	"github.com/storekite/checkout-core/internal/gateway"
	"github.com/storekite/checkout-core/internal/orders"
	"github.com/storekite/checkout-core/internal/payref"
	"github.com/storekite/checkout-core/internal/pricing"
)

// EmailPublisher hands the confirmation-email job off to the queue after a
// successful commit. Failures are logged, never propagated.
type EmailPublisher interface {
	SendEmailJob(ctx context.Context, messageBody string, attributes map[string]string) error
}

// Metrics receives best-effort order metrics after commit.
type Metrics interface {
	OrderPlaced(ctx context.Context, finalTotal float64)
}

// Config holds the checkout knobs that vary by deployment.
type Config struct {
	Currency        string  // ISO code sent to the gateway, e.g. "INR"
	AmountTolerance float64 // max accepted drift between quoted and recomputed totals, major units
	PaymentMethod   string  // recorded on orders, e.g. "razorpay"
}

// DefaultConfig matches the production deployment.
func DefaultConfig() Config {
	return Config{
		Currency:        "INR",
		AmountTolerance: 0.50,
		PaymentMethod:   "razorpay",
	}
}

// commitRetries bounds re-pricing attempts after a concurrent counter
// conflict cancels the commit transaction.
const commitRetries = 2

// Service implements the payment workflow: issuing gateway intents and
// verifying signed callbacks into atomically committed orders.
type Service struct {
	engine    *pricing.Engine
	products  *catalog.Store
	coupons   *coupon.Store
	orders    *orders.Store
	payrefs   *payref.Store
	gateway   *gateway.Client
	publisher EmailPublisher
	metrics   Metrics
	cfg       Config
	newID     func() string
}

// NewService wires a checkout Service. publisher and metrics may be nil.
func NewService(
	engine *pricing.Engine,
	products *catalog.Store,
	coupons *coupon.Store,
	orderStore *orders.Store,
	payrefs *payref.Store,
	gw *gateway.Client,
	publisher EmailPublisher,
	metrics Metrics,
	cfg Config,
) *Service {
	return &Service{
		engine:    engine,
		products:  products,
		coupons:   coupons,
		orders:    orderStore,
		payrefs:   payrefs,
		gateway:   gw,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
		newID:     uuid.NewString,
	}
}

// IntentResult is the issuer's answer: the gateway reference the client pays
// against, and the quoted amount in minor units.
type IntentResult struct {
	GatewayOrderID string
	AmountMinor    int64
	Currency       string
}

// CreateIntent validates the amount, converts it to minor units and creates a
// gateway order for it. The quoted minor-unit amount is stored with the
// payment reference so verification can check the recomputed total against
// what the gateway was actually asked to charge.
func (s *Service) CreateIntent(ctx context.Context, amountMajor float64) (*IntentResult, error) {
	if math.IsNaN(amountMajor) || math.IsInf(amountMajor, 0) || amountMajor <= 0 {
		return nil, &Error{Code: CodeInvalidAmount, Message: "amount must be a positive number"}
	}

	amountMinor := decimal.NewFromFloat(amountMajor).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	receipt := "rcpt_" + s.newID()

	gatewayOrderID, err := s.gateway.CreateOrder(ctx, amountMinor, s.cfg.Currency, receipt)
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			return nil, &Error{Code: CodeGatewayUnavailable, Message: "payment gateway is unavailable, try again"}
		}
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	if err := s.payrefs.CreateIntent(ctx, gatewayOrderID, receipt, amountMinor, s.cfg.Currency); err != nil {
		// The gateway order exists; surface the failure so the caller retries
		// with a fresh intent rather than paying against an unrecorded one.
		log.Printf("[checkout] failed to record intent for gateway order %s: %v", gatewayOrderID, err)
		return nil, fmt.Errorf("record payment intent: %w", err)
	}

	return &IntentResult{
		GatewayOrderID: gatewayOrderID,
		AmountMinor:    amountMinor,
		Currency:       s.cfg.Currency,
	}, nil
}

// VerifyInput is the gateway callback payload plus the order details the
// client submitted alongside it. Prices inside Lines are ignored; pricing is
// recomputed from stored state.
type VerifyInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
	UserID           string
	CustomerName     string
	Email            string
	Lines            []pricing.CartLine
	ShippingAddress  orders.Address
	CouponCode       string
	PaidAmount       float64 // client-asserted total, major units; 0 when absent
}

// VerifyResult carries the committed (or replayed) order.
type VerifyResult struct {
	Order            *orders.Order
	AlreadyProcessed bool
}

// VerifyAndCommit validates the gateway callback and commits the order with
// all its inventory and coupon mutations in one transaction. Replayed
// callbacks for an already-committed gateway order return the existing order
// without touching any counter again.
func (s *Service) VerifyAndCommit(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	if in.GatewayOrderID == "" || in.GatewayPaymentID == "" || in.GatewaySignature == "" || len(in.Lines) == 0 {
		return nil, &Error{Code: CodeMissingFields, Message: "missing payment verification fields"}
	}

	if !s.gateway.VerifySignature(in.GatewayOrderID, in.GatewayPaymentID, in.GatewaySignature) {
		return nil, &Error{Code: CodeInvalidSignature, Message: "payment signature verification failed"}
	}

	rec, err := s.payrefs.Get(ctx, in.GatewayOrderID)
	if err != nil {
		return nil, fmt.Errorf("load payment reference: %w", err)
	}
	if rec != nil && rec.Status == payref.StatusPaid {
		return s.replay(ctx, rec)
	}

	for attempt := 0; ; attempt++ {
		quote, err := s.engine.Quote(ctx, pricing.QuoteInput{
			Lines:      in.Lines,
			CouponCode: in.CouponCode,
			UserID:     in.UserID,
			PostalCode: in.ShippingAddress.PostalCode,
		})
		if err != nil {
			return nil, err
		}

		if err := s.checkPaidAmount(rec, in.PaidAmount, quote.FinalTotal); err != nil {
			// The signature was valid, so money moved at the gateway for the
			// wrong amount. Poison the reference so no later call commits it;
			// ops reconciles from the note.
			if mfErr := s.payrefs.MarkFailed(ctx, in.GatewayOrderID, err.Error()); mfErr != nil {
				log.Printf("[checkout] mark failed for gateway order %s: %v", in.GatewayOrderID, mfErr)
			}
			return nil, err
		}

		order := s.buildOrder(in, quote)
		items, err := s.buildCommit(order, quote, in.UserID)
		if err != nil {
			return nil, err
		}

		err = s.orders.Commit(ctx, items)
		if err == nil {
			s.afterCommit(ctx, order)
			return &VerifyResult{Order: order}, nil
		}

		var conflict *orders.ErrTransactionConflict
		if !errors.As(err, &conflict) {
			return nil, err
		}

		// Item 0 is the payment-reference transition: a condition failure
		// there means another call committed this gateway order first.
		if containsIndex(conflict.FailedIndexes, 0) {
			rec, err = s.payrefs.Get(ctx, in.GatewayOrderID)
			if err != nil {
				return nil, fmt.Errorf("load payment reference after conflict: %w", err)
			}
			if rec != nil && rec.Status == payref.StatusPaid {
				return s.replay(ctx, rec)
			}
			return nil, conflict
		}

		// A stock or coupon counter moved under us; re-read and re-price.
		if attempt >= commitRetries {
			return nil, conflict
		}
		log.Printf("[checkout] commit conflict for gateway order %s, retrying (%d)", in.GatewayOrderID, attempt+1)
	}
}

// replay returns the order committed by an earlier verification call.
func (s *Service) replay(ctx context.Context, rec *payref.Record) (*VerifyResult, error) {
	order, err := s.orders.Get(ctx, rec.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load committed order %s: %w", rec.OrderID, err)
	}
	if order == nil {
		return nil, fmt.Errorf("payment reference %s marked paid but order %s missing", rec.GatewayOrderID, rec.OrderID)
	}
	return &VerifyResult{Order: order, AlreadyProcessed: true}, nil
}

// OrderByGatewayID resolves a gateway order reference to the committed order,
// if any. Returns (nil, nil) when the reference is unknown or not yet paid.
func (s *Service) OrderByGatewayID(ctx context.Context, gatewayOrderID string) (*orders.Order, error) {
	rec, err := s.payrefs.Get(ctx, gatewayOrderID)
	if err != nil {
		return nil, fmt.Errorf("load payment reference: %w", err)
	}
	if rec == nil || rec.OrderID == "" {
		return nil, nil
	}
	order, err := s.orders.Get(ctx, rec.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", rec.OrderID, err)
	}
	return order, nil
}

// checkPaidAmount compares the recomputed total against the amount quoted to
// the gateway at intent time, falling back to the client's asserted amount
// for intents that predate quote recording. Zero means nothing to check.
func (s *Service) checkPaidAmount(rec *payref.Record, claimed float64, finalTotal decimal.Decimal) error {
	var expected decimal.Decimal
	switch {
	case rec != nil && rec.QuotedAmountMinor > 0:
		expected = decimal.NewFromInt(rec.QuotedAmountMinor).Div(decimal.NewFromInt(100))
	case claimed > 0:
		expected = decimal.NewFromFloat(claimed)
	default:
		return nil
	}

	tolerance := decimal.NewFromFloat(s.cfg.AmountTolerance)
	if finalTotal.Sub(expected).Abs().GreaterThan(tolerance) {
		return &Error{
			Code: CodeAmountMismatch,
			Message: fmt.Sprintf("paid amount %s does not match order total %s",
				expected.StringFixed(2), finalTotal.StringFixed(2)),
		}
	}
	return nil
}

// buildOrder snapshots the quote into an immutable order document.
func (s *Service) buildOrder(in VerifyInput, quote *pricing.Quote) *orders.Order {
	order := &orders.Order{
		OrderID:          s.newID(),
		UserID:           in.UserID,
		CustomerName:     in.CustomerName,
		Email:            in.Email,
		ItemsTotal:       quote.ItemsTotal.InexactFloat64(),
		Discount:         quote.ItemDiscount.InexactFloat64(),
		CouponDiscount:   quote.CouponDiscount.InexactFloat64(),
		TaxAmount:        quote.TaxAmount.InexactFloat64(),
		DeliveryFee:      quote.DeliveryFee.InexactFloat64(),
		FinalTotal:       quote.FinalTotal.InexactFloat64(),
		PaymentMethod:    s.cfg.PaymentMethod,
		PaymentStatus:    orders.PaymentStatusPaid,
		GatewayOrderID:   in.GatewayOrderID,
		GatewayPaymentID: in.GatewayPaymentID,
		GatewaySignature: in.GatewaySignature,
		ShippingAddress:  in.ShippingAddress,
		Status:           orders.StatusPending,
	}
	if quote.Coupon != nil {
		order.CouponCode = quote.Coupon.Code
		order.CouponType = quote.Coupon.Type
		order.CouponValue = quote.Coupon.Value
	}
	for _, lq := range quote.Lines {
		order.Items = append(order.Items, orders.LineItem{
			ProductID:         lq.Product.ProductID,
			Name:              lq.Product.Name,
			Quantity:          lq.Quantity,
			VariantAttributes: lq.VariantAttributes,
			UnitPrice:         lq.UnitPrice.Sub(lq.PerUnitDiscount).InexactFloat64(),
			OriginalPrice:     lq.UnitPrice.InexactFloat64(),
			OfferDiscount:     lq.PerUnitDiscount.InexactFloat64(),
			Subtotal:          lq.Subtotal.InexactFloat64(),
		})
	}
	return order
}

// buildCommit assembles the transaction: payment-reference transition first
// (its index matters for conflict handling), then the order put, then the
// conditioned counter mutations.
func (s *Service) buildCommit(order *orders.Order, quote *pricing.Quote, userID string) ([]types.TransactWriteItem, error) {
	responseBody, err := json.Marshal(map[string]interface{}{
		"orderId":    order.OrderID,
		"finalTotal": order.FinalTotal,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal response snapshot: %w", err)
	}

	items := []types.TransactWriteItem{
		s.payrefs.MarkPaidItem(order.GatewayOrderID, order.OrderID, string(responseBody)),
	}

	orderItem, err := s.orders.PutItem(*order)
	if err != nil {
		return nil, err
	}
	items = append(items, orderItem)

	for _, lq := range quote.Lines {
		items = append(items, s.products.StockDecrementItem(lq.Product, lq.Quantity, lq.OfferApplied))
	}

	if quote.Coupon != nil {
		items = append(items, s.coupons.UsageIncrementItem(quote.Coupon))
		if userID != "" && quote.Coupon.PerUserLimit > 0 {
			items = append(items, s.coupons.UserUsageIncrementItem(quote.Coupon, userID))
		}
	}

	return items, nil
}

// afterCommit runs the best-effort side effects outside the transaction
// boundary. Their failure never fails the verification response.
func (s *Service) afterCommit(ctx context.Context, order *orders.Order) {
	if s.publisher != nil && order.Email != "" {
		msg, _ := json.Marshal(map[string]string{
			"gateway_order_id": order.GatewayOrderID,
			"order_id":         order.OrderID,
			"email":            order.Email,
		})
		attrs := map[string]string{"order_id": order.OrderID}
		if err := s.publisher.SendEmailJob(ctx, string(msg), attrs); err != nil {
			log.Printf("[checkout] confirmation email enqueue failed for order %s: %v", order.OrderID, err)
		}
	}
	if s.metrics != nil {
		s.metrics.OrderPlaced(ctx, order.FinalTotal)
	}
}

func containsIndex(indexes []int, want int) bool {
	for _, i := range indexes {
		if i == want {
			return true
		}
	}
	return false
}
