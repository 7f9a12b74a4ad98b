package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ReceiptFetcher is the slice of an RPC client the verifier depends on.
// *ethclient.Client satisfies this interface directly, so production code
// wires a real ethclient.Client in; tests wire a fake.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}
