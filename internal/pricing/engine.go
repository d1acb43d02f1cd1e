package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storekite/checkout-core/internal/catalog"
	"github.com/storekite/checkout-core/internal/coupon"
)

// ProductReader supplies authoritative product records.
type ProductReader interface {
	GetProduct(ctx context.Context, productID string) (*catalog.Product, error)
}

// BatchProductReader is an optional ProductReader upgrade that loads a cart's
// products in one round trip.
type BatchProductReader interface {
	BatchGet(ctx context.Context, productIDs []string) (map[string]*catalog.Product, error)
}

// CouponReader supplies authoritative coupon records and per-user usage counts.
type CouponReader interface {
	GetCoupon(ctx context.Context, code string) (*coupon.Coupon, error)
	UserUsage(ctx context.Context, code, userID string) (int, error)
}

// FeeLookup supplies the delivery fee for a shipping postal code.
type FeeLookup interface {
	DeliveryFee(ctx context.Context, postalCode string) (float64, error)
}

// Config holds the pricing knobs that vary by deployment.
type Config struct {
	TaxRate decimal.Decimal // e.g. 0.10
}

// DefaultConfig returns the standard 10% tax rate.
func DefaultConfig() Config {
	return Config{TaxRate: decimal.NewFromFloat(0.10)}
}

// Engine computes authoritative quotes from server-stored state. It performs
// no writes and is called both by the pre-validate preview and by the payment
// verifier before committing an order, so the preview a user sees is exactly
// what they are charged.
type Engine struct {
	products ProductReader
	coupons  CouponReader
	zones    FeeLookup
	cfg      Config
	nowFunc  func() time.Time
}

// NewEngine wires an Engine over its readers. zones may be nil, in which case
// the delivery fee defaults to zero.
func NewEngine(products ProductReader, coupons CouponReader, zones FeeLookup, cfg Config) *Engine {
	return &Engine{
		products: products,
		coupons:  coupons,
		zones:    zones,
		cfg:      cfg,
		nowFunc:  time.Now,
	}
}

// round2 applies the money rounding used at every accumulation boundary:
// half away from zero to 2 decimal places.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Quote prices the cart against current product/coupon state.
// Failures are returned as *QuoteError with a stable code; any other error is
// a storage failure.
func (e *Engine) Quote(ctx context.Context, in QuoteInput) (*Quote, error) {
	q := &Quote{
		ItemsTotal:     decimal.Zero,
		ItemDiscount:   decimal.Zero,
		CouponDiscount: decimal.Zero,
		DeliveryFee:    decimal.Zero,
	}

	prefetched, err := e.prefetch(ctx, in.Lines)
	if err != nil {
		return nil, err
	}

	for _, line := range in.Lines {
		lq, err := e.priceLine(ctx, line, prefetched)
		if err != nil {
			return nil, err
		}
		q.Lines = append(q.Lines, *lq)
		gross := round2(lq.UnitPrice.Mul(decimal.NewFromInt(int64(lq.Quantity))))
		lineDiscount := round2(lq.PerUnitDiscount.Mul(decimal.NewFromInt(int64(lq.Quantity))))
		q.ItemsTotal = q.ItemsTotal.Add(gross)
		q.ItemDiscount = q.ItemDiscount.Add(lineDiscount)
		q.TotalQuantity += lq.Quantity
	}

	subtotalAfterOffers := q.ItemsTotal.Sub(q.ItemDiscount)

	if in.CouponCode != "" {
		c, discount, err := e.applyCoupon(ctx, in, subtotalAfterOffers, q.TotalQuantity)
		if err != nil {
			return nil, err
		}
		q.Coupon = c
		q.CouponDiscount = discount
	}

	if e.zones != nil {
		fee, err := e.zones.DeliveryFee(ctx, in.PostalCode)
		if err != nil {
			return nil, fmt.Errorf("delivery fee lookup: %w", err)
		}
		q.DeliveryFee = round2(decimal.NewFromFloat(fee))
	}

	taxable := round2(subtotalAfterOffers.Sub(q.CouponDiscount))
	q.TaxAmount = round2(taxable.Mul(e.cfg.TaxRate))
	q.FinalTotal = round2(taxable.Add(q.TaxAmount).Add(q.DeliveryFee))

	return q, nil
}

// prefetch loads the cart's products in one batch when the reader supports it.
// A nil map means per-line reads.
func (e *Engine) prefetch(ctx context.Context, lines []CartLine) (map[string]*catalog.Product, error) {
	br, ok := e.products.(BatchProductReader)
	if !ok || len(lines) < 2 {
		return nil, nil
	}
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	m, err := br.BatchGet(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("batch load products: %w", err)
	}
	return m, nil
}

func (e *Engine) priceLine(ctx context.Context, line CartLine, prefetched map[string]*catalog.Product) (*LineQuote, error) {
	if line.Quantity <= 0 {
		return nil, quoteErrf(CodeInvalidQuantity, "quantity for product %s must be a positive integer", line.ProductID)
	}

	p := prefetched[line.ProductID]
	if p == nil {
		var err error
		p, err = e.products.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", line.ProductID, err)
		}
	}
	if p == nil {
		return nil, quoteErrf(CodeProductNotFound, "product %s does not exist", line.ProductID)
	}
	if line.Quantity > p.Stock {
		return nil, quoteErrf(CodeInsufficientStock, "only %d units available for %s", p.Stock, p.Name)
	}

	lq := &LineQuote{
		Product:           p,
		Quantity:          line.Quantity,
		VariantAttributes: line.VariantAttributes,
		UnitPrice:         round2(decimal.NewFromFloat(p.Price)),
		PerUnitDiscount:   decimal.Zero,
	}

	if p.HasActiveOffer() {
		if p.Offer.MinQuantity > 0 && line.Quantity < p.Offer.MinQuantity {
			return nil, quoteErrf(CodeOfferMinimumNotMet,
				"offer on %s requires at least %d units", p.Name, p.Offer.MinQuantity)
		}
		lq.PerUnitDiscount = offerPerUnitDiscount(lq.UnitPrice, p.Offer)
		lq.OfferApplied = true
	}

	lq.Subtotal = round2(lq.UnitPrice.Sub(lq.PerUnitDiscount).Mul(decimal.NewFromInt(int64(line.Quantity))))
	return lq, nil
}

// offerPerUnitDiscount computes the per-unit offer discount, clamped to
// [0, unit price] so a discounted unit can never go negative.
func offerPerUnitDiscount(price decimal.Decimal, o *catalog.Offer) decimal.Decimal {
	var d decimal.Decimal
	switch o.Type {
	case catalog.OfferTypeFixed:
		d = round2(decimal.NewFromFloat(o.Value))
	case catalog.OfferTypePercentage:
		d = round2(price.Mul(decimal.NewFromFloat(o.Value)).Div(decimal.NewFromInt(100)))
	default:
		return decimal.Zero
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(price) {
		return price
	}
	return d
}

func (e *Engine) applyCoupon(ctx context.Context, in QuoteInput, subtotal decimal.Decimal, totalQty int) (*coupon.Coupon, decimal.Decimal, error) {
	c, err := e.coupons.GetCoupon(ctx, in.CouponCode)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("load coupon %s: %w", in.CouponCode, err)
	}
	if c == nil {
		return nil, decimal.Zero, quoteErrf(CodeCouponNotFound, "coupon %q does not exist", in.CouponCode)
	}
	if !c.IsActive {
		return nil, decimal.Zero, quoteErrf(CodeCouponNotFound, "coupon %q is no longer active", c.Code)
	}
	if c.Expiry != nil && e.nowFunc().After(*c.Expiry) {
		return nil, decimal.Zero, quoteErrf(CodeCouponExpired, "coupon %q has expired", c.Code)
	}
	if c.TotalLimit > 0 && c.UsedCount >= c.TotalLimit {
		return nil, decimal.Zero, quoteErrf(CodeCouponLimitReached, "coupon %q has reached its usage limit", c.Code)
	}
	if c.MinOrder > 0 && subtotal.LessThan(decimal.NewFromFloat(c.MinOrder)) {
		return nil, decimal.Zero, quoteErrf(CodeCouponMinimumNotMet,
			"coupon %q requires a minimum order of %.2f", c.Code, c.MinOrder)
	}
	if c.MinQuantity > 0 && totalQty < c.MinQuantity {
		return nil, decimal.Zero, quoteErrf(CodeCouponMinimumNotMet,
			"coupon %q requires at least %d items", c.Code, c.MinQuantity)
	}
	if in.UserID != "" && c.PerUserLimit > 0 {
		used, err := e.coupons.UserUsage(ctx, c.Code, in.UserID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("load coupon usage: %w", err)
		}
		if used >= c.PerUserLimit {
			return nil, decimal.Zero, quoteErrf(CodeCouponAlreadyUsed,
				"coupon %q was already used the maximum number of times", c.Code)
		}
	}

	var d decimal.Decimal
	switch c.Type {
	case coupon.TypeFixed:
		d = round2(decimal.NewFromFloat(c.Value))
	case coupon.TypePercentage:
		d = round2(subtotal.Mul(decimal.NewFromFloat(c.Value)).Div(decimal.NewFromInt(100)))
	default:
		d = decimal.Zero
	}
	if d.IsNegative() {
		d = decimal.Zero
	}
	// never discount more than the subtotal it applies to
	if d.GreaterThan(subtotal) {
		d = subtotal
	}
	return c, d, nil
}
