// Package ledger verifies that a claimed on-chain transfer actually pays
// for a given payment requirement. The verifier is stateless with respect
// to prior requirements: given a txHash and a requirement, it reconstructs
// what must be true and checks the receipt against it (spec §4.2).
package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/agentgate/paygate/pkg/protocol"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Verification is the outcome of a successful Verify call.
type Verification struct {
	From        common.Address
	To          common.Address
	Amount      *big.Int
	TxHash      common.Hash
	BlockNumber uint64

	// LogIndex is the index, within the receipt, of the log record that
	// satisfied the requirement. Combined with TxHash it forms the
	// replay-defense key (spec §9, "choose (txHash, logIndex) keying").
	LogIndex uint
}

// Verifier checks settlement references against ledger receipts.
type Verifier struct {
	Fetcher ReceiptFetcher

	// StrictMemo, when true, rejects a plain Transfer (one without a
	// memo) whenever the requirement specifies a non-zero memo. The
	// default (false) implements the permissive reading from spec §4.2
	// step 7: a memo-less Transfer is acceptable even when the
	// requirement carries a memo, because the memo is a reconciliation
	// aid, not a security primitive. See spec §9's open question.
	StrictMemo bool

	// now is overridable for deterministic tests.
	now func() time.Time
}

// NewVerifier constructs a Verifier reading receipts from fetcher.
func NewVerifier(fetcher ReceiptFetcher) *Verifier {
	return &Verifier{Fetcher: fetcher, now: time.Now}
}

// Verify implements the algorithm from spec §4.2 and returns the single
// best-matching log, for callers that only ever admit one reference per
// receipt. Callers that must bind several distinct requests to the same
// receipt — batch settlement (spec §4.5) — use VerifyAll instead, and
// claim each candidate in turn until one is unused.
func (v *Verifier) Verify(ctx context.Context, txHash common.Hash, req *protocol.PaymentRequirement) (*Verification, error) {
	verifications, err := v.VerifyAll(ctx, txHash, req)
	if err != nil {
		return nil, err
	}
	return verifications[0], nil
}

// VerifyAll implements the algorithm from spec §4.2, generalized to the
// §4.5 batch resolution: "the verifier accepts a reference if any unused
// matching log inside the receipt satisfies the current requirement".
// Rather than picking a single log, it reports every log that satisfies
// the requirement, in the same preference order Verify used to collapse
// to its first element:
//  1. reject if the requirement has expired;
//  2. fetch the receipt and reject a reverted transaction;
//  3. walk the receipt's logs for ones emitted by the required token
//     contract, decoding as Transfer or TransferWithMemo, whose `to`
//     matches the required recipient;
//  4. prefer TransferWithMemo matches over plain Transfer matches, and
//     earliest log index among logs of the same shape;
//  5. within that order, keep every log that meets the amount and
//     (permissive, unless StrictMemo) memo requirements;
//  6. reject on no match, underpayment, or memo mismatch, using the
//     first candidate in preference order to pick the failure reason.
func (v *Verifier) VerifyAll(ctx context.Context, txHash common.Hash, req *protocol.PaymentRequirement) ([]*Verification, error) {
	if v.nowFunc().After(req.ExpiryTime()) {
		return nil, newErr(CodeExpired, "requirement expired before verification", nil)
	}

	receipt, err := v.Fetcher.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, newErr(CodeRPCUnavailable, "failed to fetch transaction receipt", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, newErr(CodeTxReverted, "transaction execution did not succeed", nil)
	}

	requiredAmount, err := req.AmountRequiredInt()
	if err != nil {
		return nil, newErr(CodeNoMatchingTransfer, "requirement has an invalid amount", err)
	}

	candidates := v.matchingLogs(receipt.Logs, req.TokenAddress, req.RecipientAddress)
	if len(candidates) == 0 {
		return nil, newErr(CodeNoMatchingTransfer, "no log matched token, recipient and shape", nil)
	}

	zeroMemo := req.Memo == (common.Hash{})
	var verifications []*Verification
	for _, dt := range candidates {
		if dt.Value.Cmp(requiredAmount) < 0 {
			continue
		}
		if !zeroMemo {
			if dt.HasMemo && dt.Memo != req.Memo {
				continue
			}
			// Stricter deployment policy (spec §9 open question): reject
			// a plain Transfer when the requirement demands a memo. The
			// default, permissive reading accepts it — the memo is a
			// reconciliation aid, not a security primitive.
			if !dt.HasMemo && v.StrictMemo {
				continue
			}
		}
		verifications = append(verifications, &Verification{
			From:        dt.From,
			To:          dt.To,
			Amount:      dt.Value,
			TxHash:      txHash,
			BlockNumber: receipt.BlockNumber.Uint64(),
			LogIndex:    dt.LogIndex,
		})
	}

	if len(verifications) == 0 {
		best := candidates[0]
		if best.Value.Cmp(requiredAmount) < 0 {
			return nil, newErr(CodeInsufficient, "transferred value is below the required amount", nil)
		}
		return nil, newErr(CodeMemoMismatch, "transfer memo does not match requirement", nil)
	}

	return verifications, nil
}

// matchingLogs implements the tie-break order from spec §4.2: among logs
// emitted by the required token with `to` equal to the recipient, every
// TransferWithMemo log (earliest index first) precedes every plain
// Transfer log (earliest index first).
func (v *Verifier) matchingLogs(logs []*types.Log, token, recipient common.Address) []decodedTransfer {
	var memos, plains []decodedTransfer

	for _, log := range logs {
		if log.Address != token {
			continue
		}
		dt, ok := decodeTransferLog(log)
		if !ok || dt.To != recipient {
			continue
		}
		if dt.HasMemo {
			memos = append(memos, dt)
		} else {
			plains = append(plains, dt)
		}
	}

	return append(memos, plains...)
}

func (v *Verifier) nowFunc() time.Time {
	if v.now != nil {
		return v.now()
	}
	return time.Now()
}
