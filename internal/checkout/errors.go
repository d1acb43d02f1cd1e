package checkout

// Machine-readable failure codes for the payment endpoints. Pricing failures
// keep their own codes from the pricing package.
const (
	CodeInvalidAmount      = "InvalidAmount"
	CodeGatewayUnavailable = "GatewayUnavailable"
	CodeMissingFields      = "MissingFields"
	CodeInvalidSignature   = "InvalidSignature"
	CodeAmountMismatch     = "AmountMismatch"
)

// Error is a checkout failure with a stable code and a message safe to show
// to the end user. None of these leave any persistence side effect.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}
