package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/storekite/checkout-core/internal/aws"
)

// Store encapsulates operations on the coupons and coupon-usage tables.
type Store struct {
	client     aws.DynamoDBAPI
	tableName  string
	usageTable string
	nowFunc    func() time.Time
}

// NewStore creates a new coupon Store.
func NewStore(client aws.DynamoDBAPI, tableName, usageTable string) *Store {
	return &Store{
		client:     client,
		tableName:  tableName,
		usageTable: usageTable,
		nowFunc:    time.Now,
	}
}

// usageID builds the composite key for the per-user usage item.
func usageID(code, userID string) string {
	return code + "#" + userID
}

// GetCoupon fetches a coupon by code. Returns (nil, nil) if not found.
func (s *Store) GetCoupon(ctx context.Context, code string) (*Coupon, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"code": &types.AttributeValueMemberS{Value: code},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var c Coupon
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal coupon: %w", err)
	}
	return &c, nil
}

// Put writes a coupon item unconditionally. Used by seeding and admin tooling.
func (s *Store) Put(ctx context.Context, c Coupon) error {
	now := s.nowFunc()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal coupon: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put coupon: %w", err)
	}
	return nil
}

// UserUsage returns how many orders userID has placed with code. Zero if the
// usage item does not exist yet.
func (s *Store) UserUsage(ctx context.Context, code, userID string) (int, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.usageTable,
		Key: map[string]types.AttributeValue{
			"usage_id": &types.AttributeValueMemberS{Value: usageID(code, userID)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("get coupon usage: %w", err)
	}
	if len(out.Item) == 0 {
		return 0, nil
	}
	var u Usage
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return 0, fmt.Errorf("unmarshal coupon usage: %w", err)
	}
	return u.UsedCount, nil
}

// UsageIncrementItem builds the transact entry that bumps the coupon's global
// used_count. The write is conditioned on the value read during pricing, so a
// concurrent order racing the coupon toward total_limit cancels the whole
// transaction instead of overshooting the cap. The coupon is deactivated in
// the same write when the bump reaches total_limit.
func (s *Store) UsageIncrementItem(c *Coupon) types.TransactWriteItem {
	now := s.nowFunc()

	updateExpr := "SET used_count = used_count + :one, updated_at = :ua"
	conditionExpr := "used_count = :seen"
	values := map[string]types.AttributeValue{
		":one":  &types.AttributeValueMemberN{Value: "1"},
		":ua":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		":seen": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", c.UsedCount)},
	}
	if c.TotalLimit > 0 && c.UsedCount+1 >= c.TotalLimit {
		updateExpr += ", is_active = :inactive"
		values[":inactive"] = &types.AttributeValueMemberBOOL{Value: false}
	}

	return types.TransactWriteItem{
		Update: &types.Update{
			TableName: &s.tableName,
			Key: map[string]types.AttributeValue{
				"code": &types.AttributeValueMemberS{Value: c.Code},
			},
			UpdateExpression:          &updateExpr,
			ConditionExpression:       &conditionExpr,
			ExpressionAttributeValues: values,
		},
	}
}

// UserUsageIncrementItem builds the transact entry that bumps the per-user
// usage counter, creating the usage item on first use. Conditioned on the
// counter staying under per_user_limit so concurrent orders from the same
// user cannot exceed it.
func (s *Store) UserUsageIncrementItem(c *Coupon, userID string) types.TransactWriteItem {
	now := s.nowFunc()

	updateExpr := "SET used_count = if_not_exists(used_count, :zero) + :one, coupon_code = :c, user_id = :u, updated_at = :ua"
	conditionExpr := "attribute_not_exists(usage_id) OR used_count < :pl"
	values := map[string]types.AttributeValue{
		":zero": &types.AttributeValueMemberN{Value: "0"},
		":one":  &types.AttributeValueMemberN{Value: "1"},
		":c":    &types.AttributeValueMemberS{Value: c.Code},
		":u":    &types.AttributeValueMemberS{Value: userID},
		":ua":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		":pl":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", c.PerUserLimit)},
	}

	return types.TransactWriteItem{
		Update: &types.Update{
			TableName: &s.usageTable,
			Key: map[string]types.AttributeValue{
				"usage_id": &types.AttributeValueMemberS{Value: usageID(c.Code, userID)},
			},
			UpdateExpression:          &updateExpr,
			ConditionExpression:       &conditionExpr,
			ExpressionAttributeValues: values,
		},
	}
}
