package ledger

// Code is a machine-readable ledger verification failure reason. The
// paywall middleware maps these onto the 402 sub-error codes in its
// response body (spec §4.3).
type Code string

const (
	CodeExpired            Code = "PAYMENT_EXPIRED"
	CodeTxReverted         Code = "TX_REVERTED"
	CodeInsufficient       Code = "INSUFFICIENT"
	CodeNoMatchingTransfer Code = "NO_MATCH"
	CodeMemoMismatch       Code = "MEMO_MISMATCH"
	CodeRPCUnavailable     Code = "RPC_UNAVAILABLE"
)

// VerificationError reports why Verify rejected a settlement reference.
// All ledger-read errors (RPC unreachable, receipt not found, decode
// failure) surface through this type with Code == CodeRPCUnavailable; the
// middleware translates it into a 402 body, not a 5xx.
type VerificationError struct {
	Code   Code
	Reason string
	Err    error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Reason + ": " + e.Err.Error()
	}
	if e.Reason != "" {
		return string(e.Code) + ": " + e.Reason
	}
	return string(e.Code)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

func newErr(code Code, reason string, err error) *VerificationError {
	return &VerificationError{Code: code, Reason: reason, Err: err}
}
