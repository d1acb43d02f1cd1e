package orders

import (
	"context"
	"errors"
	"strings"
	"testing"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// orderDB is an in-memory stand-in keyed by order_id.
type orderDB struct {
	items       map[string]map[string]types.AttributeValue
	transactErr error
}

func newOrderDB() *orderDB {
	return &orderDB{items: map[string]map[string]types.AttributeValue{}}
}

func keyOf(m map[string]types.AttributeValue) string {
	if av, ok := m["order_id"].(*types.AttributeValueMemberS); ok {
		return av.Value
	}
	return ""
}

func (db *orderDB) seed(orderID, status string) {
	db.items[orderID] = map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
		"status":   &types.AttributeValueMemberS{Value: status},
	}
}

func (db *orderDB) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	db.items[keyOf(params.Item)] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (db *orderDB) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	return &dyn.GetItemOutput{Item: db.items[keyOf(params.Key)]}, nil
}

func (db *orderDB) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	item := db.items[keyOf(params.Key)]
	values := params.ExpressionAttributeValues

	if params.ConditionExpression != nil && strings.Contains(*params.ConditionExpression, ":expected") {
		msg := "The conditional request failed"
		if item == nil {
			return nil, &types.ConditionalCheckFailedException{Message: &msg}
		}
		status, _ := item["status"].(*types.AttributeValueMemberS)
		expected, _ := values[":expected"].(*types.AttributeValueMemberS)
		if status == nil || expected == nil || status.Value != expected.Value {
			return nil, &types.ConditionalCheckFailedException{Message: &msg}
		}
	}
	item["status"] = values[":new"]
	item["updated_at"] = values[":ua"]
	return &dyn.UpdateItemOutput{}, nil
}

func (db *orderDB) BatchGetItem(ctx context.Context, params *dyn.BatchGetItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchGetItemOutput, error) {
	return &dyn.BatchGetItemOutput{}, nil
}

func (db *orderDB) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	return &dyn.ScanOutput{}, nil
}

func (db *orderDB) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	if db.transactErr != nil {
		return nil, db.transactErr
	}
	for _, it := range params.TransactItems {
		if it.Put != nil {
			db.items[keyOf(it.Put.Item)] = it.Put.Item
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func TestPutItem_GuardsAgainstIDReuse(t *testing.T) {
	s := NewStore(newOrderDB(), "orders")

	item, err := s.PutItem(Order{OrderID: "o1", Status: StatusPending})
	if err != nil {
		t.Fatalf("put item: %v", err)
	}
	if item.Put == nil {
		t.Fatal("expected a Put transact item")
	}
	if *item.Put.ConditionExpression != "attribute_not_exists(order_id)" {
		t.Fatalf("condition = %q", *item.Put.ConditionExpression)
	}
	if keyOf(item.Put.Item) != "o1" {
		t.Fatal("order_id missing from item")
	}
}

func TestCommit_ParsesCancellationReasons(t *testing.T) {
	db := newOrderDB()
	codes := []string{"None", "ConditionalCheckFailed", "None", "ConditionalCheckFailed"}
	reasons := make([]types.CancellationReason, len(codes))
	for i := range codes {
		reasons[i] = types.CancellationReason{Code: &codes[i]}
	}
	msg := "Transaction cancelled"
	db.transactErr = &types.TransactionCanceledException{Message: &msg, CancellationReasons: reasons}

	s := NewStore(db, "orders")
	err := s.Commit(context.Background(), []types.TransactWriteItem{{}, {}, {}, {}})

	var conflict *ErrTransactionConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrTransactionConflict, got %v", err)
	}
	if len(conflict.FailedIndexes) != 2 || conflict.FailedIndexes[0] != 1 || conflict.FailedIndexes[1] != 3 {
		t.Fatalf("failed indexes = %v, want [1 3]", conflict.FailedIndexes)
	}
}

func TestCommit_OtherErrorsPassThrough(t *testing.T) {
	db := newOrderDB()
	db.transactErr = errors.New("throttled")

	s := NewStore(db, "orders")
	err := s.Commit(context.Background(), nil)

	var conflict *ErrTransactionConflict
	if errors.As(err, &conflict) {
		t.Fatal("a non-cancellation error must not become a conflict")
	}
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGet_Missing(t *testing.T) {
	s := NewStore(newOrderDB(), "orders")
	o, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if o != nil {
		t.Fatal("expected nil for a missing order")
	}
}

func TestUpdateStatus_AllowedTransitions(t *testing.T) {
	db := newOrderDB()
	s := NewStore(db, "orders")

	db.seed("o1", StatusPending)
	steps := []struct{ from, to string }{
		{StatusPending, StatusConfirmed},
		{StatusConfirmed, StatusProcessing},
		{StatusProcessing, StatusShipped},
		{StatusShipped, StatusDelivered},
	}
	for _, st := range steps {
		if err := s.UpdateStatus(context.Background(), "o1", st.from, st.to); err != nil {
			t.Fatalf("%s -> %s: %v", st.from, st.to, err)
		}
	}

	o, _ := s.Get(context.Background(), "o1")
	if o.Status != StatusDelivered {
		t.Fatalf("status = %s, want %s", o.Status, StatusDelivered)
	}
}

func TestUpdateStatus_ForwardOnly(t *testing.T) {
	db := newOrderDB()
	s := NewStore(db, "orders")
	db.seed("o1", StatusConfirmed)

	bad := []struct{ from, to string }{
		{StatusConfirmed, StatusPending},   // nothing moves back to pending
		{StatusPending, StatusShipped},     // no skipping
		{StatusShipped, StatusCancelled},   // shipped only delivers
		{StatusDelivered, StatusConfirmed}, // terminal
		{StatusCancelled, StatusPending},   // terminal
	}
	for _, st := range bad {
		if err := s.UpdateStatus(context.Background(), "o1", st.from, st.to); err == nil {
			t.Fatalf("%s -> %s must be rejected", st.from, st.to)
		}
	}

	// the stored status never changed
	o, _ := s.Get(context.Background(), "o1")
	if o.Status != StatusConfirmed {
		t.Fatalf("status = %s, want %s", o.Status, StatusConfirmed)
	}
}

func TestUpdateStatus_Mismatch(t *testing.T) {
	db := newOrderDB()
	s := NewStore(db, "orders")
	db.seed("o1", StatusProcessing)

	err := s.UpdateStatus(context.Background(), "o1", StatusPending, StatusConfirmed)
	if !errors.Is(err, ErrStatusMismatch) {
		t.Fatalf("expected ErrStatusMismatch, got %v", err)
	}
}
