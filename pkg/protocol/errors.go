package protocol

import "errors"

// Sentinel errors for the protocol package. Callers use errors.Is against
// these rather than matching on string content.
var (
	// ErrInvalidAmount is returned when a requested amount is non-positive
	// or carries more fractional digits than the token's decimals allow.
	ErrInvalidAmount = errors.New("protocol: invalid amount")

	// ErrInvalidExpiry is returned when an expiry is not strictly after
	// the issuance time.
	ErrInvalidExpiry = errors.New("protocol: expiry must be after issuance time")

	// ErrEmptyNonce is returned when a requirement is built without a nonce.
	ErrEmptyNonce = errors.New("protocol: nonce must not be empty")

	// ErrMalformedHeader is available to ParseSettlementHeader callers that
	// want an error instead of the (ref, false) zero-value form. Nothing in
	// this module returns it.
	ErrMalformedHeader = errors.New("protocol: malformed settlement header")
)
