package validation

import (
	"math"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// gt=0 already rejects NaN (comparisons with NaN are false); infinities
	// pass it, so they are rejected at the struct level.
	v.RegisterStructValidation(createIntentStructValidation, CreateIntentRequest{})
	v.RegisterStructValidation(orderDetailsStructValidation, OrderDetails{})

	return v
}

// createIntentStructValidation rejects non-finite amounts.
func createIntentStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateIntentRequest)
	if math.IsInf(req.Amount, 0) {
		sl.ReportError(req.Amount, "amount", "Amount", "amount_finite", "amount must be finite")
	}
}

// orderDetailsStructValidation rejects a non-finite declared paid amount.
func orderDetailsStructValidation(sl validatorv10.StructLevel) {
	od := sl.Current().Interface().(OrderDetails)
	if math.IsInf(od.PaidAmount, 0) || math.IsNaN(od.PaidAmount) {
		sl.ReportError(od.PaidAmount, "paidAmount", "PaidAmount", "amount_finite", "paidAmount must be finite")
	}
}
