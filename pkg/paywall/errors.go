package paywall

import "net/http"

// ErrorCode is a machine-readable code included in error response bodies.
type ErrorCode string

const (
	CodeHeaderMalformed ErrorCode = "HEADER_MALFORMED"
	CodeReplay          ErrorCode = "REPLAY"
	CodePaymentExpired  ErrorCode = "PAYMENT_EXPIRED"
	CodeTxReverted      ErrorCode = "TX_REVERTED"
	CodeInsufficient    ErrorCode = "INSUFFICIENT"
	CodeNoMatch         ErrorCode = "NO_MATCH"
	CodeMemoMismatch    ErrorCode = "MEMO_MISMATCH"
	CodeRPCUnavailable  ErrorCode = "RPC_UNAVAILABLE"
)

// statusFor maps an ErrorCode to the HTTP status the middleware responds
// with. REPLAY is the only non-402 rejection among the payment codes;
// HEADER_MALFORMED is 400. Everything else verification-related is a
// retryable 402 (spec §4.3, §7).
func statusFor(code ErrorCode) int {
	switch code {
	case CodeHeaderMalformed:
		return http.StatusBadRequest
	case CodeReplay:
		return http.StatusConflict
	default:
		return http.StatusPaymentRequired
	}
}
