package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/storekite/checkout-core/internal/checkout"
	"github.com/storekite/checkout-core/internal/orders"
	"github.com/storekite/checkout-core/internal/pricing"
	"github.com/storekite/checkout-core/internal/reporting"
	"github.com/storekite/checkout-core/internal/validation"
)

// HandlerConfig groups dependencies for the payment routes.
type HandlerConfig struct {
	Checkout *checkout.Service
	Engine   *pricing.Engine
	Reports  *reporting.Aggregator
}

// RegisterPaymentRoutes registers the payment and pre-validate routes.
// The authenticated user id, when present, arrives in X-User-Id from the
// auth layer in front of this service; an empty value means guest checkout.
func RegisterPaymentRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()

	r.POST("/payment/create-order", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.CreateIntentRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		res, err := cfg.Checkout.CreateIntent(ctx, req.Amount)
		if err != nil {
			writeCheckoutError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"orderId":  res.GatewayOrderID,
			"amount":   res.AmountMinor,
			"currency": res.Currency,
		})
	})

	r.POST("/payment/verify", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.VerifyPaymentRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		in := checkout.VerifyInput{
			GatewayOrderID:   req.RazorpayOrderID,
			GatewayPaymentID: req.RazorpayPaymentID,
			GatewaySignature: req.RazorpaySignature,
			UserID:           c.GetHeader("X-User-Id"),
			CustomerName:     req.OrderDetails.CustomerName,
			Email:            req.OrderDetails.Email,
			Lines:            toCartLines(req.OrderDetails.Products),
			ShippingAddress:  toAddress(req.OrderDetails.ShippingAddress),
			CouponCode:       req.OrderDetails.CouponCode,
			PaidAmount:       req.OrderDetails.PaidAmount,
		}

		res, err := cfg.Checkout.VerifyAndCommit(ctx, in)
		if err != nil {
			writeCheckoutError(c, err)
			return
		}

		msg := "payment verified and order placed"
		if res.AlreadyProcessed {
			msg = "payment already processed"
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": msg,
			"order":   res.Order,
		})
	})

	r.GET("/payment/orders/:gatewayOrderId", func(c *gin.Context) {
		ctx := c.Request.Context()

		order, err := cfg.Checkout.OrderByGatewayID(ctx, c.Param("gatewayOrderId"))
		if err != nil {
			log.Printf("[handlers] order lookup failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal_error"})
			return
		}
		if order == nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "order_not_found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
	})

	r.POST("/orders/pre-validate", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.PreValidateRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		postalCode := ""
		if req.ShippingAddress != nil {
			postalCode = req.ShippingAddress.PostalCode
		}

		quote, err := cfg.Engine.Quote(ctx, pricing.QuoteInput{
			Lines:      toCartLines(req.Products),
			CouponCode: req.CouponCode,
			UserID:     c.GetHeader("X-User-Id"),
			PostalCode: postalCode,
		})
		if err != nil {
			var qe *pricing.QuoteError
			if errors.As(err, &qe) {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": qe.Code, "message": qe.Message})
				return
			}
			log.Printf("[handlers] pre-validate failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal_error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"itemsTotal":     quote.ItemsTotal.InexactFloat64(),
			"discount":       quote.ItemDiscount.InexactFloat64(),
			"couponDiscount": quote.CouponDiscount.InexactFloat64(),
			"taxAmount":      quote.TaxAmount.InexactFloat64(),
			"deliveryFee":    quote.DeliveryFee.InexactFloat64(),
			"finalTotal":     quote.FinalTotal.InexactFloat64(),
			"totalQuantity":  quote.TotalQuantity,
		})
	})

	if cfg.Reports != nil {
		r.GET("/reports/sales", func(c *gin.Context) {
			ctx := c.Request.Context()

			to := time.Now().UTC()
			from := to.AddDate(0, 0, -30)
			if s := c.Query("from"); s != "" {
				t, err := time.Parse(time.RFC3339, s)
				if err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_from"})
					return
				}
				from = t
			}
			if s := c.Query("to"); s != "" {
				t, err := time.Parse(time.RFC3339, s)
				if err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_to"})
					return
				}
				to = t
			}

			report, err := cfg.Reports.SalesBetween(ctx, from, to)
			if err != nil {
				log.Printf("[handlers] sales report failed: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal_error"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
		})
	}
}

// writeCheckoutError maps service failures onto the API contract: input
// problems are 400s, state conflicts discovered during verification and
// gateway trouble are 500s, storage errors are a generic 500.
func writeCheckoutError(c *gin.Context, err error) {
	var ce *checkout.Error
	if errors.As(err, &ce) {
		status := http.StatusInternalServerError
		switch ce.Code {
		case checkout.CodeInvalidAmount, checkout.CodeMissingFields, checkout.CodeInvalidSignature:
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"success": false, "error": ce.Code, "message": ce.Message})
		return
	}

	var qe *pricing.QuoteError
	if errors.As(err, &qe) {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": qe.Code, "message": qe.Message})
		return
	}

	log.Printf("[handlers] checkout failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal_error"})
}

func toCartLines(items []validation.CartItem) []pricing.CartLine {
	lines := make([]pricing.CartLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, pricing.CartLine{
			ProductID:         it.ProductID,
			Quantity:          it.Quantity,
			VariantAttributes: it.VariantAttributes,
		})
	}
	return lines
}

func toAddress(a validation.Address) orders.Address {
	return orders.Address{
		Name:       a.Name,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}
