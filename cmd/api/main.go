package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/storekite/checkout-core/internal/aws"
	"github.com/storekite/checkout-core/internal/catalog"
	"github.com/storekite/checkout-core/internal/checkout"
	"github.com/storekite/checkout-core/internal/coupon"
	"github.com/storekite/checkout-core/internal/gateway"
	"github.com/storekite/checkout-core/internal/handlers"
	"github.com/storekite/checkout-core/internal/orders"
	"github.com/storekite/checkout-core/internal/payref"
	"github.com/storekite/checkout-core/internal/pricing"
	"github.com/storekite/checkout-core/internal/reporting"
	"github.com/storekite/checkout-core/internal/zone"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func floatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("invalid %s=%q, using %v", key, v, fallback)
	}
	return fallback
}

func setupRouter(checkoutSvc *checkout.Service, engine *pricing.Engine, reports *reporting.Aggregator) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterPaymentRoutes(r, handlers.HandlerConfig{
		Checkout: checkoutSvc,
		Engine:   engine,
		Reports:  reports,
	})

	return r
}

func main() {
	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	productStore := catalog.NewStore(clients.DynamoDB, env("PRODUCTS_TABLE", "products"))
	couponStore := coupon.NewStore(clients.DynamoDB, env("COUPONS_TABLE", "coupons"), env("COUPON_USAGE_TABLE", "coupon-usage"))
	zoneStore := zone.NewStore(clients.DynamoDB, env("ZONES_TABLE", "delivery-zones"))
	orderStore := orders.NewStore(clients.DynamoDB, env("ORDERS_TABLE", "orders"))
	payrefStore := payref.NewStore(clients.DynamoDB, env("PAYMENT_REFS_TABLE", "payment-refs"), 48*time.Hour)

	engine := pricing.NewEngine(productStore, couponStore, zoneStore, pricing.Config{
		TaxRate: decimal.NewFromFloat(floatEnv("TAX_RATE", 0.10)),
	})

	gw := gateway.NewClient(
		env("GATEWAY_BASE_URL", "https://api.razorpay.com"),
		os.Getenv("GATEWAY_KEY_ID"),
		os.Getenv("GATEWAY_KEY_SECRET"),
	)

	publisher := aws.NewPublisher(clients.SQS, os.Getenv("EMAIL_QUEUE_URL"))
	metrics := reporting.NewCloudWatchMetrics(clients.CloudWatch, env("METRICS_NAMESPACE", "Storekite/Checkout"))

	checkoutSvc := checkout.NewService(
		engine,
		productStore,
		couponStore,
		orderStore,
		payrefStore,
		gw,
		publisher,
		metrics,
		checkout.Config{
			Currency:        env("CURRENCY", "INR"),
			AmountTolerance: floatEnv("PAYMENT_TOLERANCE", 0.50),
			PaymentMethod:   "razorpay",
		},
	)

	reports := reporting.NewAggregator(clients.DynamoDB, env("ORDERS_TABLE", "orders"))

	r := setupRouter(checkoutSvc, engine, reports)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		addr := ":8080"
		log.Printf("running local server on %s", addr)
		if err := r.Run(addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
