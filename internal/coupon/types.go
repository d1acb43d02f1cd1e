package coupon

import "time"

// Coupon discount kinds
const (
	TypePercentage = "percentage"
	TypeFixed      = "fixed"
)

// Coupon is the item stored in the coupons DynamoDB table, keyed by code.
// TotalLimit caps usage across all users; PerUserLimit caps a single user.
type Coupon struct {
	Code         string     `dynamodbav:"code" json:"code"` // PK
	Type         string     `dynamodbav:"type" json:"type"` // percentage | fixed
	Value        float64    `dynamodbav:"value" json:"value"`
	MinOrder     float64    `dynamodbav:"min_order,omitempty" json:"minOrder,omitempty"`
	MinQuantity  int        `dynamodbav:"min_quantity,omitempty" json:"minQuantity,omitempty"`
	Expiry       *time.Time `dynamodbav:"expiry,omitempty" json:"expiry,omitempty"`
	TotalLimit   int        `dynamodbav:"total_limit" json:"totalLimit"`
	UsedCount    int        `dynamodbav:"used_count" json:"usedCount"`
	PerUserLimit int        `dynamodbav:"per_user_limit" json:"perUserLimit"`
	IsActive     bool       `dynamodbav:"is_active" json:"isActive"`
	CreatedAt    time.Time  `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `dynamodbav:"updated_at" json:"updatedAt"`
}

// Usage tracks how many orders a single user has placed with a code.
// Keyed by "<code>#<user_id>" so the per-user increment can be conditioned.
type Usage struct {
	UsageID    string    `dynamodbav:"usage_id" json:"usageId"` // PK: code#userID
	CouponCode string    `dynamodbav:"coupon_code" json:"couponCode"`
	UserID     string    `dynamodbav:"user_id" json:"userId"`
	UsedCount  int       `dynamodbav:"used_count" json:"usedCount"`
	UpdatedAt  time.Time `dynamodbav:"updated_at" json:"updatedAt"`
}
