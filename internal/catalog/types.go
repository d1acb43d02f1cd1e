package catalog

import "time"

// Offer discount kinds
const (
	OfferTypePercentage = "percentage"
	OfferTypeFixed      = "fixed"
)

// Offer is a per-product promotional discount embedded in the product item.
// MaxUses == 0 means uncapped.
type Offer struct {
	IsActive    bool    `dynamodbav:"is_active" json:"isActive"`
	Type        string  `dynamodbav:"type" json:"type"` // percentage | fixed
	Value       float64 `dynamodbav:"value" json:"value"`
	MinQuantity int     `dynamodbav:"min_quantity,omitempty" json:"minQuantity,omitempty"`
	MaxUses     int     `dynamodbav:"max_uses,omitempty" json:"maxUses,omitempty"`
	UsedCount   int     `dynamodbav:"used_count" json:"usedCount"`
}

// Product is the item stored in the products DynamoDB table.
// Price is the authoritative unit price; clients never supply prices.
type Product struct {
	ProductID string    `dynamodbav:"product_id" json:"productId"` // PK
	Name      string    `dynamodbav:"name" json:"name"`
	Price     float64   `dynamodbav:"price" json:"price"`
	Stock     int       `dynamodbav:"stock" json:"stock"`
	Offer     *Offer    `dynamodbav:"offer,omitempty" json:"offer,omitempty"`
	CreatedAt time.Time `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt time.Time `dynamodbav:"updated_at" json:"updatedAt"`
}

// HasActiveOffer reports whether the product carries an offer that can still
// be applied (active, and below its usage cap if capped).
func (p *Product) HasActiveOffer() bool {
	if p.Offer == nil || !p.Offer.IsActive {
		return false
	}
	if p.Offer.MaxUses > 0 && p.Offer.UsedCount >= p.Offer.MaxUses {
		return false
	}
	return true
}
