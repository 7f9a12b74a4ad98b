package settlement

import "errors"

// Non-retryable errors (spec §4.5): the client must not retry the
// backoff loop for these, since retrying cannot change the outcome.
var (
	ErrInsufficientBalance = errors.New("settlement: signer balance is below the required amount")
	ErrInvalidChallenge    = errors.New("settlement: 402 response body is missing required fields")
)

// ErrTimeout is returned by Fetch when the overall deadline elapses.
var ErrTimeout = errors.New("settlement: deadline exceeded before settlement completed")

// ErrExhausted is returned by Fetch when every retry attempt has been
// used without a non-402 response.
var ErrExhausted = errors.New("settlement: retries exhausted without completing settlement")
