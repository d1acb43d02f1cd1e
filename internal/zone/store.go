// Package zone looks up delivery fees by shipping postal code. Zone CRUD is
// owned by the admin surface; checkout only reads.
package zone

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/storekite/checkout-core/internal/aws"
)

// Zone maps a postal code to a delivery fee.
type Zone struct {
	PostalCode  string  `dynamodbav:"postal_code" json:"postalCode"` // PK
	Name        string  `dynamodbav:"name,omitempty" json:"name,omitempty"`
	DeliveryFee float64 `dynamodbav:"delivery_fee" json:"deliveryFee"`
}

// Store encapsulates reads on the delivery-zones table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a new zone Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// DeliveryFee returns the fee for a postal code. Unknown codes (and an empty
// postal code) get a zero fee rather than an error.
func (s *Store) DeliveryFee(ctx context.Context, postalCode string) (float64, error) {
	if postalCode == "" {
		return 0, nil
	}
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"postal_code": &types.AttributeValueMemberS{Value: postalCode},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("get zone: %w", err)
	}
	if len(out.Item) == 0 {
		return 0, nil
	}
	var z Zone
	if err := attributevalue.UnmarshalMap(out.Item, &z); err != nil {
		return 0, fmt.Errorf("unmarshal zone: %w", err)
	}
	return z.DeliveryFee, nil
}
