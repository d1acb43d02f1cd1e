package payref

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/storekite/checkout-core/internal/aws"
)

// Store encapsulates payment-reference operations against DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration // default TTL window when creating entries
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// tableName: DynamoDB table name for payment-reference entries.
// ttlWindow: default TTL window (e.g., 48*time.Hour)
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// CreateIntent records the gateway order created by the intent issuer,
// including the minor-unit amount quoted to the gateway. Verification later
// checks the recomputed total against this stored quote rather than trusting
// the client's claim.
func (s *Store) CreateIntent(ctx context.Context, gatewayOrderID, receipt string, amountMinor int64, currency string) error {
	now := s.nowFunc()
	rec := Record{
		GatewayOrderID:    gatewayOrderID,
		Status:            StatusIntentCreated,
		Receipt:           receipt,
		QuotedAmountMinor: amountMinor,
		Currency:          currency,
		CreatedAt:         now,
		UpdatedAt:         now,
		ExpiresAt:         now.Add(s.ttlWindow).Unix(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	input := &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
		// Only create when attribute_not_exists(gateway_order_id)
		ConditionExpression: awsString("attribute_not_exists(gateway_order_id)"),
	}

	_, err = s.client.PutItem(ctx, input)
	if err != nil {
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return fmt.Errorf("gateway order %s already recorded", gatewayOrderID)
		}
		return fmt.Errorf("put item: %w", err)
	}

	return nil
}

// Get retrieves a payment-reference record by gateway order id.
// If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, gatewayOrderID string) (*Record, error) {
	input := &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"gateway_order_id": &types.AttributeValueMemberS{Value: gatewayOrderID},
		},
	}
	out, err := s.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &rec, nil
}

// MarkPaidItem builds the transact entry that flips the record to PAID and
// binds the committed order id. The condition admits the INTENT_CREATED state
// and the no-record-yet case (intents issued before this table existed), and
// rejects a record that is already PAID, which is what serializes two
// concurrent verification calls for the same gateway order down to one
// committed order.
func (s *Store) MarkPaidItem(gatewayOrderID, orderID, responseBody string) types.TransactWriteItem {
	now := s.nowFunc()

	updateExpr := "SET #s = :paid, order_id = :oid, response_body = :rb, updated_at = :ua, " +
		"created_at = if_not_exists(created_at, :ua), expires_at = if_not_exists(expires_at, :exp)"
	conditionExpr := "attribute_not_exists(gateway_order_id) OR #s = :intent"

	return types.TransactWriteItem{
		Update: &types.Update{
			TableName: &s.tableName,
			Key: map[string]types.AttributeValue{
				"gateway_order_id": &types.AttributeValueMemberS{Value: gatewayOrderID},
			},
			UpdateExpression:         &updateExpr,
			ConditionExpression:      &conditionExpr,
			ExpressionAttributeNames: map[string]string{"#s": "status"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":paid":   &types.AttributeValueMemberS{Value: StatusPaid},
				":intent": &types.AttributeValueMemberS{Value: StatusIntentCreated},
				":oid":    &types.AttributeValueMemberS{Value: orderID},
				":rb":     &types.AttributeValueMemberS{Value: responseBody},
				":ua":     &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
				":exp":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Add(s.ttlWindow).Unix())},
			},
		},
	}
}

// MarkFailed marks the record as FAILED and stores a note.
func (s *Store) MarkFailed(ctx context.Context, gatewayOrderID, note string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"gateway_order_id": &types.AttributeValueMemberS{Value: gatewayOrderID},
		},
		UpdateExpression: awsString("SET #s = :failed, note = :n, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed": &types.AttributeValueMemberS{Value: StatusFailed},
			":n":      &types.AttributeValueMemberS{Value: note},
			":ua":     &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		return fmt.Errorf("update item (mark failed): %w", err)
	}
	return nil
}

// ClaimEmailSend atomically claims the confirmation-email send for a PAID
// record. Returns (true, nil) if this caller won the claim; (false, nil) if
// the email was already claimed or the record is not PAID. SQS delivers at
// least once, so the worker claims before sending.
func (s *Store) ClaimEmailSend(ctx context.Context, gatewayOrderID string) (bool, error) {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"gateway_order_id": &types.AttributeValueMemberS{Value: gatewayOrderID},
		},
		UpdateExpression:         awsString("SET email_sent = :t, updated_at = :ua"),
		ConditionExpression:      awsString("#s = :paid AND (attribute_not_exists(email_sent) OR email_sent = :f)"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":    &types.AttributeValueMemberBOOL{Value: true},
			":f":    &types.AttributeValueMemberBOOL{Value: false},
			":paid": &types.AttributeValueMemberS{Value: StatusPaid},
			":ua":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return false, nil
		}
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("claim email send: %w", err)
	}
	return true, nil
}

// ReleaseEmailClaim undoes a claim after a failed send so the SQS retry can
// claim again.
func (s *Store) ReleaseEmailClaim(ctx context.Context, gatewayOrderID string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"gateway_order_id": &types.AttributeValueMemberS{Value: gatewayOrderID},
		},
		UpdateExpression: awsString("SET email_sent = :f, updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":f":  &types.AttributeValueMemberBOOL{Value: false},
			":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		return fmt.Errorf("release email claim: %w", err)
	}
	return nil
}

// Helper
func awsString(s string) *string { return &s }
