package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event signatures for the two log shapes the verifier understands: the
// standard ERC-20 Transfer event, and the extended TransferWithMemo event
// used to bind an on-chain transfer to a specific request fingerprint.
var (
	transferSig = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	transferWithMemoSig = crypto.Keccak256Hash([]byte("TransferWithMemo(address,address,uint256,bytes32)"))
)

// decodedTransfer is a normalized view of a matching log record,
// regardless of whether it carried a memo.
type decodedTransfer struct {
	From     common.Address
	To       common.Address
	Value    *big.Int
	Memo     common.Hash
	HasMemo  bool
	LogIndex uint
}

// decodeTransferLog decodes a log as either Transfer or TransferWithMemo.
// Returns ok=false for logs that match neither shape (wrong topic count,
// wrong signature, or truncated data).
func decodeTransferLog(log *types.Log) (decodedTransfer, bool) {
	if len(log.Topics) != 3 {
		return decodedTransfer{}, false
	}

	from := common.BytesToAddress(log.Topics[1].Bytes())
	to := common.BytesToAddress(log.Topics[2].Bytes())

	switch log.Topics[0] {
	case transferSig:
		if len(log.Data) < 32 {
			return decodedTransfer{}, false
		}
		return decodedTransfer{
			From:     from,
			To:       to,
			Value:    new(big.Int).SetBytes(log.Data[:32]),
			LogIndex: log.Index,
		}, true

	case transferWithMemoSig:
		if len(log.Data) < 64 {
			return decodedTransfer{}, false
		}
		return decodedTransfer{
			From:     from,
			To:       to,
			Value:    new(big.Int).SetBytes(log.Data[:32]),
			Memo:     common.BytesToHash(log.Data[32:64]),
			HasMemo:  true,
			LogIndex: log.Index,
		}, true

	default:
		return decodedTransfer{}, false
	}
}
