package checkout

import (
	"context"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is an in-memory DynamoDB good enough for the store layer: it
// keeps items per table keyed by their primary key and evaluates the concrete
// condition and update expressions the stores build.
type mockDynamo struct {
	mu            sync.Mutex
	keys          map[string]string // table -> primary key attribute
	tables        map[string]map[string]map[string]types.AttributeValue
	transactCalls int

	// cancelOnce, when set, fails the next TransactWriteItems call with the
	// given cancellation reasons and then clears itself.
	cancelOnce *types.TransactionCanceledException
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		keys: map[string]string{
			"products":       "product_id",
			"coupons":        "code",
			"coupon-usage":   "usage_id",
			"orders":         "order_id",
			"payment-refs":   "gateway_order_id",
			"delivery-zones": "postal_code",
		},
		tables: map[string]map[string]map[string]types.AttributeValue{},
	}
}

func (m *mockDynamo) pkOf(tableName string, item map[string]types.AttributeValue) (string, string) {
	attr := m.keys[tableName]
	if av, ok := item[attr].(*types.AttributeValueMemberS); ok {
		return attr, av.Value
	}
	return attr, ""
}

func (m *mockDynamo) table(name string) map[string]map[string]types.AttributeValue {
	t, ok := m.tables[name]
	if !ok {
		t = map[string]map[string]types.AttributeValue{}
		m.tables[name] = t
	}
	return t
}

func (m *mockDynamo) seed(tableName string, item map[string]types.AttributeValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, pk := m.pkOf(tableName, item)
	m.table(tableName)[pk] = item
}

func (m *mockDynamo) get(tableName, pk string) map[string]types.AttributeValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table(tableName)[pk]
}

func numOf(av types.AttributeValue) int64 {
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	v, _ := strconv.ParseInt(n.Value, 10, 64)
	return v
}

func setNum(item map[string]types.AttributeValue, attr string, v int64) {
	item[attr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}

func strOf(av types.AttributeValue) string {
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return s.Value
}

func boolOf(av types.AttributeValue) bool {
	b, ok := av.(*types.AttributeValueMemberBOOL)
	return ok && b.Value
}

func ccfErr() error {
	msg := "The conditional request failed"
	return &types.ConditionalCheckFailedException{Message: &msg}
}

// checkCondition evaluates the condition expressions the stores actually use.
func checkCondition(cond string, values map[string]types.AttributeValue, item map[string]types.AttributeValue, pkAttr string) bool {
	if cond == "" {
		return true
	}
	exists := item != nil
	switch {
	case cond == "attribute_not_exists("+pkAttr+")":
		return !exists

	// payment reference: INTENT_CREATED (or absent) -> PAID
	case strings.Contains(cond, ":intent"):
		if !exists {
			return true
		}
		return strOf(item["status"]) == strOf(values[":intent"])

	// email claim: must be PAID and not yet sent
	case strings.Contains(cond, "email_sent"):
		if !exists {
			return false
		}
		if strOf(item["status"]) != strOf(values[":paid"]) {
			return false
		}
		sent, ok := item["email_sent"]
		return !ok || !boolOf(sent)

	case strings.HasPrefix(cond, "stock >= :q"):
		if !exists || numOf(item["stock"]) < numOf(values[":q"]) {
			return false
		}
		if strings.Contains(cond, "offer.used_count = :seen") {
			offer, ok := item["offer"].(*types.AttributeValueMemberM)
			if !ok {
				return false
			}
			return numOf(offer.Value["used_count"]) == numOf(values[":seen"])
		}
		return true

	case cond == "used_count = :seen":
		return exists && numOf(item["used_count"]) == numOf(values[":seen"])

	case strings.HasPrefix(cond, "attribute_not_exists(usage_id)"):
		if !exists {
			return true
		}
		return numOf(item["used_count"]) < numOf(values[":pl"])

	case cond == "#s = :expected":
		return exists && strOf(item["status"]) == strOf(values[":expected"])
	}
	return true
}

// applyUpdate mutates item according to the update expressions the stores use.
func applyUpdate(update string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) {
	switch {
	// payment reference -> PAID
	case strings.Contains(update, "order_id = :oid"):
		item["status"] = values[":paid"]
		item["order_id"] = values[":oid"]
		item["response_body"] = values[":rb"]
		item["updated_at"] = values[":ua"]
		if _, ok := item["created_at"]; !ok {
			item["created_at"] = values[":ua"]
		}
		if _, ok := item["expires_at"]; !ok {
			item["expires_at"] = values[":exp"]
		}

	case strings.Contains(update, "email_sent = :t"):
		item["email_sent"] = values[":t"]
		item["updated_at"] = values[":ua"]

	case strings.Contains(update, "email_sent = :f"):
		item["email_sent"] = values[":f"]
		item["updated_at"] = values[":ua"]

	case strings.Contains(update, ":failed"):
		item["status"] = values[":failed"]
		item["note"] = values[":n"]
		item["updated_at"] = values[":ua"]

	case strings.Contains(update, "stock = stock - :q"):
		setNum(item, "stock", numOf(item["stock"])-numOf(values[":q"]))
		item["updated_at"] = values[":ua"]
		if strings.Contains(update, "offer.used_count") {
			if offer, ok := item["offer"].(*types.AttributeValueMemberM); ok {
				setNum(offer.Value, "used_count", numOf(offer.Value["used_count"])+numOf(values[":q"]))
				if strings.Contains(update, "offer.is_active = :inactive") {
					offer.Value["is_active"] = values[":inactive"]
				}
			}
		}

	case strings.Contains(update, "used_count = used_count + :one"):
		setNum(item, "used_count", numOf(item["used_count"])+1)
		item["updated_at"] = values[":ua"]
		if strings.Contains(update, "is_active = :inactive") {
			item["is_active"] = values[":inactive"]
		}

	case strings.Contains(update, "if_not_exists(used_count, :zero)"):
		setNum(item, "used_count", numOf(item["used_count"])+1)
		item["coupon_code"] = values[":c"]
		item["user_id"] = values[":u"]
		item["updated_at"] = values[":ua"]

	// order status transition
	case strings.Contains(update, "#s = :new"):
		item["status"] = values[":new"]
		item["updated_at"] = values[":ua"]
	}
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, pk := m.pkOf(*params.TableName, params.Key)
	item := m.table(*params.TableName)[pk]
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pkAttr, pk := m.pkOf(*params.TableName, params.Item)
	t := m.table(*params.TableName)
	cond := ""
	if params.ConditionExpression != nil {
		cond = *params.ConditionExpression
	}
	if !checkCondition(cond, nil, t[pk], pkAttr) {
		return nil, ccfErr()
	}
	t[pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pkAttr, pk := m.pkOf(*params.TableName, params.Key)
	t := m.table(*params.TableName)
	item := t[pk]
	cond := ""
	if params.ConditionExpression != nil {
		cond = *params.ConditionExpression
	}
	if !checkCondition(cond, params.ExpressionAttributeValues, item, pkAttr) {
		return nil, ccfErr()
	}
	if item == nil {
		item = map[string]types.AttributeValue{pkAttr: params.Key[pkAttr]}
		t[pk] = item
	}
	applyUpdate(*params.UpdateExpression, params.ExpressionAttributeValues, item)
	return &dyn.UpdateItemOutput{}, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactCalls++

	if m.cancelOnce != nil {
		err := m.cancelOnce
		m.cancelOnce = nil
		return nil, err
	}

	// first pass: check every condition; any failure cancels every write
	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	for i, it := range params.TransactItems {
		code := "None"
		switch {
		case it.Put != nil:
			pkAttr, pk := m.pkOf(*it.Put.TableName, it.Put.Item)
			cond := ""
			if it.Put.ConditionExpression != nil {
				cond = *it.Put.ConditionExpression
			}
			if !checkCondition(cond, it.Put.ExpressionAttributeValues, m.table(*it.Put.TableName)[pk], pkAttr) {
				code = "ConditionalCheckFailed"
				failed = true
			}
		case it.Update != nil:
			pkAttr, pk := m.pkOf(*it.Update.TableName, it.Update.Key)
			cond := ""
			if it.Update.ConditionExpression != nil {
				cond = *it.Update.ConditionExpression
			}
			if !checkCondition(cond, it.Update.ExpressionAttributeValues, m.table(*it.Update.TableName)[pk], pkAttr) {
				code = "ConditionalCheckFailed"
				failed = true
			}
		}
		c := code
		reasons[i] = types.CancellationReason{Code: &c}
	}
	if failed {
		msg := "Transaction cancelled"
		return nil, &types.TransactionCanceledException{Message: &msg, CancellationReasons: reasons}
	}

	// second pass: apply
	for _, it := range params.TransactItems {
		switch {
		case it.Put != nil:
			_, pk := m.pkOf(*it.Put.TableName, it.Put.Item)
			m.table(*it.Put.TableName)[pk] = it.Put.Item
		case it.Update != nil:
			pkAttr, pk := m.pkOf(*it.Update.TableName, it.Update.Key)
			t := m.table(*it.Update.TableName)
			item := t[pk]
			if item == nil {
				item = map[string]types.AttributeValue{pkAttr: it.Update.Key[pkAttr]}
				t[pk] = item
			}
			applyUpdate(*it.Update.UpdateExpression, it.Update.ExpressionAttributeValues, item)
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (m *mockDynamo) BatchGetItem(ctx context.Context, params *dyn.BatchGetItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchGetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &dyn.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{}}
	for tableName, ka := range params.RequestItems {
		for _, key := range ka.Keys {
			_, pk := m.pkOf(tableName, key)
			if item := m.table(tableName)[pk]; item != nil {
				out.Responses[tableName] = append(out.Responses[tableName], item)
			}
		}
	}
	return out, nil
}

func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &dyn.ScanOutput{}
	for _, item := range m.table(*params.TableName) {
		out.Items = append(out.Items, item)
	}
	out.Count = int32(len(out.Items))
	return out, nil
}
