// Package reporting aggregates committed orders for dashboards. It is a
// read-only consumer of the orders table.
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/storekite/checkout-core/internal/aws"
	"github.com/storekite/checkout-core/internal/orders"
)

// SalesReport summarizes paid orders in a window.
type SalesReport struct {
	From           time.Time `json:"from"`
	To             time.Time `json:"to"`
	OrderCount     int       `json:"orderCount"`
	Gross          float64   `json:"gross"` // pre-discount items total
	OfferDiscount  float64   `json:"offerDiscount"`
	CouponDiscount float64   `json:"couponDiscount"`
	TaxCollected   float64   `json:"taxCollected"`
	DeliveryFees   float64   `json:"deliveryFees"`
	Revenue        float64   `json:"revenue"` // sum of final totals
}

// Aggregator scans the orders table and sums paid orders.
type Aggregator struct {
	client      aws.DynamoDBAPI
	ordersTable string
}

// NewAggregator creates an Aggregator over the orders table.
func NewAggregator(client aws.DynamoDBAPI, ordersTable string) *Aggregator {
	return &Aggregator{client: client, ordersTable: ordersTable}
}

// SalesBetween aggregates paid orders created within [from, to].
func (a *Aggregator) SalesBetween(ctx context.Context, from, to time.Time) (*SalesReport, error) {
	report := &SalesReport{From: from, To: to}
	gross := decimal.Zero
	offerDiscount := decimal.Zero
	couponDiscount := decimal.Zero
	tax := decimal.Zero
	fees := decimal.Zero
	revenue := decimal.Zero

	filter := "payment_status = :p AND created_at BETWEEN :from AND :to"
	values := map[string]types.AttributeValue{
		":p":    &types.AttributeValueMemberS{Value: orders.PaymentStatusPaid},
		":from": &types.AttributeValueMemberS{Value: from.UTC().Format(time.RFC3339Nano)},
		":to":   &types.AttributeValueMemberS{Value: to.UTC().Format(time.RFC3339Nano)},
	}

	var startKey map[string]types.AttributeValue
	for {
		out, err := a.client.Scan(ctx, &dyn.ScanInput{
			TableName:                 &a.ordersTable,
			FilterExpression:          &filter,
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}

		var page []orders.Order
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		for _, o := range page {
			report.OrderCount++
			gross = gross.Add(decimal.NewFromFloat(o.ItemsTotal))
			offerDiscount = offerDiscount.Add(decimal.NewFromFloat(o.Discount))
			couponDiscount = couponDiscount.Add(decimal.NewFromFloat(o.CouponDiscount))
			tax = tax.Add(decimal.NewFromFloat(o.TaxAmount))
			fees = fees.Add(decimal.NewFromFloat(o.DeliveryFee))
			revenue = revenue.Add(decimal.NewFromFloat(o.FinalTotal))
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	report.Gross = gross.Round(2).InexactFloat64()
	report.OfferDiscount = offerDiscount.Round(2).InexactFloat64()
	report.CouponDiscount = couponDiscount.Round(2).InexactFloat64()
	report.TaxCollected = tax.Round(2).InexactFloat64()
	report.DeliveryFees = fees.Round(2).InexactFloat64()
	report.Revenue = revenue.Round(2).InexactFloat64()
	return report, nil
}
