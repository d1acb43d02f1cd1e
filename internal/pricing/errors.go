package pricing

import "fmt"

// Machine-readable failure codes surfaced to clients.
const (
	CodeProductNotFound     = "ProductNotFound"
	CodeInvalidQuantity     = "InvalidQuantity"
	CodeInsufficientStock   = "InsufficientStock"
	CodeOfferMinimumNotMet  = "OfferMinimumNotMet"
	CodeCouponNotFound      = "CouponNotFound"
	CodeCouponExpired       = "CouponExpired"
	CodeCouponLimitReached  = "CouponLimitReached"
	CodeCouponMinimumNotMet = "CouponMinimumNotMet"
	CodeCouponAlreadyUsed   = "CouponAlreadyUsedByUser"
)

// QuoteError is a validation or state-conflict failure from the engine.
// It is safe to show Message to the end user.
type QuoteError struct {
	Code    string
	Message string
}

func (e *QuoteError) Error() string {
	return e.Code + ": " + e.Message
}

func quoteErrf(code, format string, args ...interface{}) *QuoteError {
	return &QuoteError{Code: code, Message: fmt.Sprintf(format, args...)}
}
