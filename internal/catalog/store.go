package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/storekite/checkout-core/internal/aws"
)

// Store encapsulates operations on the products table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new products Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// GetProduct fetches a product by product_id. Returns (nil, nil) if not found.
func (s *Store) GetProduct(ctx context.Context, productID string) (*Product, error) {
	key := map[string]types.AttributeValue{
		"product_id": &types.AttributeValueMemberS{Value: productID},
	}
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// BatchGet loads many products in one round trip. Missing ids are simply
// absent from the result map. Duplicate ids are collapsed; DynamoDB rejects
// duplicate keys in a batch.
func (s *Store) BatchGet(ctx context.Context, productIDs []string) (map[string]*Product, error) {
	result := make(map[string]*Product, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	seen := make(map[string]bool, len(productIDs))
	keys := make([]map[string]types.AttributeValue, 0, len(productIDs))
	for _, id := range productIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		keys = append(keys, map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: id},
		})
	}

	request := map[string]types.KeysAndAttributes{s.tableName: {Keys: keys}}
	for len(request) > 0 {
		out, err := s.client.BatchGetItem(ctx, &dyn.BatchGetItemInput{RequestItems: request})
		if err != nil {
			return nil, fmt.Errorf("batch get products: %w", err)
		}
		for _, item := range out.Responses[s.tableName] {
			var p Product
			if err := attributevalue.UnmarshalMap(item, &p); err != nil {
				return nil, fmt.Errorf("unmarshal product: %w", err)
			}
			result[p.ProductID] = &p
		}
		request = out.UnprocessedKeys
	}
	return result, nil
}

// Put writes a product item unconditionally. Used by seeding and admin tooling.
func (s *Store) Put(ctx context.Context, p Product) error {
	now := s.nowFunc()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put product: %w", err)
	}
	return nil
}

// StockDecrementItem builds the transact entry that decrements stock for one
// order line. The write is conditioned on current stock covering the quantity,
// so a concurrent commit that drains stock cancels the whole transaction
// instead of driving stock negative.
//
// When the offer participated in pricing, its used_count is bumped by the
// quantity under an optimistic check against the value read during pricing,
// and the offer is deactivated in the same write if the bump reaches max_uses.
func (s *Store) StockDecrementItem(p *Product, quantity int, offerApplied bool) types.TransactWriteItem {
	now := s.nowFunc()

	updateExpr := "SET stock = stock - :q, updated_at = :ua"
	conditionExpr := "stock >= :q"
	values := map[string]types.AttributeValue{
		":q":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", quantity)},
		":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
	}

	if offerApplied && p.Offer != nil {
		updateExpr += ", offer.used_count = offer.used_count + :q"
		conditionExpr += " AND offer.used_count = :seen"
		values[":seen"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", p.Offer.UsedCount)}
		if p.Offer.MaxUses > 0 && p.Offer.UsedCount+quantity >= p.Offer.MaxUses {
			updateExpr += ", offer.is_active = :inactive"
			values[":inactive"] = &types.AttributeValueMemberBOOL{Value: false}
		}
	}

	return types.TransactWriteItem{
		Update: &types.Update{
			TableName: &s.tableName,
			Key: map[string]types.AttributeValue{
				"product_id": &types.AttributeValueMemberS{Value: p.ProductID},
			},
			UpdateExpression:          &updateExpr,
			ConditionExpression:       &conditionExpr,
			ExpressionAttributeValues: values,
		},
	}
}
