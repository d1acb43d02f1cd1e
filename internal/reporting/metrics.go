package reporting

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/storekite/checkout-core/internal/aws"
)

// CloudWatchMetrics publishes order metrics. All publishes are best effort:
// failures are logged and swallowed.
type CloudWatchMetrics struct {
	client    aws.CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewCloudWatchMetrics returns a publisher bound to a metric namespace.
func NewCloudWatchMetrics(client aws.CloudWatchAPI, namespace string) *CloudWatchMetrics {
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// OrderPlaced records one placed order and its revenue.
func (m *CloudWatchMetrics) OrderPlaced(ctx context.Context, finalTotal float64) {
	now := m.nowFunc()
	one := 1.0
	input := &cloudwatch.PutMetricDataInput{
		Namespace: &m.namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: strPtr("OrdersPlaced"),
				Value:      &one,
				Unit:       cwtypes.StandardUnitCount,
				Timestamp:  &now,
			},
			{
				MetricName: strPtr("OrderRevenue"),
				Value:      &finalTotal,
				Unit:       cwtypes.StandardUnitNone,
				Timestamp:  &now,
			},
		},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		log.Printf("[reporting] put metric data failed: %v", err)
	}
}

func strPtr(s string) *string { return &s }
