package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/storekite/checkout-core/internal/catalog"
	"github.com/storekite/checkout-core/internal/coupon"
)

// CartLine is the client-submitted cart shape: which product, how many, and
// any selected variant attributes. Prices never come from the client.
type CartLine struct {
	ProductID         string
	Quantity          int
	VariantAttributes map[string]string
}

// QuoteInput carries everything the engine needs to price a cart.
// UserID may be empty for guest checkout; the per-user coupon limit is then
// skipped. PostalCode drives the delivery-fee lookup.
type QuoteInput struct {
	Lines      []CartLine
	CouponCode string
	UserID     string
	PostalCode string
}

// LineQuote is the priced form of one cart line. Product holds the
// authoritative record read during pricing, including the stock and offer
// counters the commit conditions on.
type LineQuote struct {
	Product           *catalog.Product
	Quantity          int
	VariantAttributes map[string]string
	UnitPrice         decimal.Decimal // authoritative price per unit
	PerUnitDiscount   decimal.Decimal // offer discount per unit, 0 when no offer applied
	Subtotal          decimal.Decimal // (UnitPrice - PerUnitDiscount) * Quantity
	OfferApplied      bool
}

// Quote is the engine's result, used both for the read-only preview and as
// the authoritative figures at commit time.
type Quote struct {
	Lines          []LineQuote
	Coupon         *coupon.Coupon // nil when no code was supplied
	ItemsTotal     decimal.Decimal
	ItemDiscount   decimal.Decimal
	CouponDiscount decimal.Decimal
	TaxAmount      decimal.Decimal
	DeliveryFee    decimal.Decimal
	FinalTotal     decimal.Decimal
	TotalQuantity  int
}
