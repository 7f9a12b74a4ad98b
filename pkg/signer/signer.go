// Package signer abstracts over how the settlement client submits the
// on-chain transfer that pays for a 402 challenge. Two variants satisfy
// the same interface: a local-key signer that holds a private key and
// submits directly, and a remote-custody signer that delegates signing
// to an external HTTPS API (spec §4.4).
package signer

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrBatchUnsupported is returned by SubmitBatch on a Signer whose
// SupportsBatch reports false. Remote-custody signers never support
// batching (spec §4.4, "Batch capability ... only available on the
// local-key variant").
var ErrBatchUnsupported = errors.New("signer: batch submission not supported")

// Transfer is one outbound payment: token, recipient, amount in the
// token's smallest unit, and an optional memo.
type Transfer struct {
	Token     common.Address
	Recipient common.Address
	Amount    *big.Int
	Memo      *common.Hash
}

// Signer submits transfers on behalf of a settlement client. The local-key
// signer's SubmitTransfer polls for a receipt before returning, so its
// txHash is already mined. The remote-custody signer returns the txHash
// the custody service reports; it does not poll the chain for a receipt.
type Signer interface {
	// ResolveAddress returns the address transfers are submitted from.
	ResolveAddress() common.Address

	// GetBalance returns the signer's balance of token, in the token's
	// smallest unit.
	GetBalance(ctx context.Context, token common.Address) (*big.Int, error)

	// SubmitTransfer submits a single transfer and returns its
	// transaction hash (see the type comment for when it is confirmed).
	SubmitTransfer(ctx context.Context, t Transfer) (common.Hash, error)

	// SupportsBatch reports whether SubmitBatch is usable. Callers
	// (the settlement engine's fetchBatch) must check this before
	// calling SubmitBatch and fall back to individual SubmitTransfer
	// calls when it is false (spec §4.5).
	SupportsBatch() bool

	// SubmitBatch atomically submits every transfer in one transaction
	// and returns a single transaction hash covering all of them.
	// Returns ErrBatchUnsupported when SupportsBatch is false.
	SubmitBatch(ctx context.Context, transfers []Transfer) (common.Hash, error)
}
