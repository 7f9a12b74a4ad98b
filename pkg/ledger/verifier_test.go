package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/agentgate/paygate/pkg/protocol"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type fakeFetcher struct {
	receipts map[common.Hash]*types.Receipt
	err      error
}

func (f *fakeFetcher) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.receipts[txHash]
	if !ok {
		return nil, errors.New("not found")
	}
	return r, nil
}

var (
	token     = common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	recipient = common.HexToAddress("0x1234567890123456789012345678901234567890")
	sender    = common.HexToAddress("0x9999999999999999999999999999999999999999")
)

func transferLog(idx uint, to common.Address, value *big.Int) *types.Log {
	data := make([]byte, 32)
	value.FillBytes(data)
	return &types.Log{
		Address: token,
		Topics: []common.Hash{
			transferSig,
			common.BytesToHash(sender.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:  data,
		Index: idx,
	}
}

func transferWithMemoLog(idx uint, to common.Address, value *big.Int, memo common.Hash) *types.Log {
	data := make([]byte, 64)
	value.FillBytes(data[:32])
	copy(data[32:64], memo.Bytes())
	return &types.Log{
		Address: token,
		Topics: []common.Hash{
			transferWithMemoSig,
			common.BytesToHash(sender.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:  data,
		Index: idx,
	}
}

func baseRequirement(t *testing.T, amount string, memo common.Hash, expiry time.Time) *protocol.PaymentRequirement {
	t.Helper()
	smallest, err := protocol.ScaleAmount(amount, 6)
	if err != nil {
		t.Fatalf("ScaleAmount: %v", err)
	}
	return &protocol.PaymentRequirement{
		RecipientAddress: recipient,
		TokenAddress:     token,
		AmountRequired:   smallest.String(),
		Expiry:           expiry.Unix(),
		Memo:             memo,
	}
}

func successReceipt(logs ...*types.Log) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		Logs:        logs,
		BlockNumber: big.NewInt(100),
	}
}

func TestVerifySuccessPlainTransfer(t *testing.T) {
	txHash := common.HexToHash("0x01")
	req := baseRequirement(t, "0.005", common.Hash{}, time.Now().Add(time.Hour))
	receipt := successReceipt(transferLog(0, recipient, big.NewInt(5000)))

	v := NewVerifier(&fakeFetcher{receipts: map[common.Hash]*types.Receipt{txHash: receipt}})
	result, err := v.Verify(context.Background(), txHash, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Amount.Cmp(big.NewInt(5000)) != 0 {
		t.Errorf("Amount = %s, want 5000", result.Amount)
	}
	if result.LogIndex != 0 {
		t.Errorf("LogIndex = %d, want 0", result.LogIndex)
	}
}

func TestVerifyOverpaymentAccepted(t *testing.T) {
	txHash := common.HexToHash("0x02")
	req := baseRequirement(t, "0.005", common.Hash{}, time.Now().Add(time.Hour))
	receipt := successReceipt(transferLog(0, recipient, big.NewInt(5001)))

	v := NewVerifier(&fakeFetcher{receipts: map[common.Hash]*types.Receipt{txHash: receipt}})
	if _, err := v.Verify(context.Background(), txHash, req); err != nil {
		t.Fatalf("overpayment should be accepted, got error: %v", err)
	}
}

func TestVerifyUnderpaymentRejected(t *testing.T) {
	txHash := common.HexToHash("0x03")
	req := baseRequirement(t, "0.005", common.Hash{}, time.Now().Add(time.Hour))
	receipt := successReceipt(transferLog(0, recipient, big.NewInt(4999)))

	v := NewVerifier(&fakeFetcher{receipts: map[common.Hash]*types.Receipt{txHash: receipt}})
	_, err := v.Verify(context.Background(), txHash, req)
	var verr *VerificationError
	if !errors.As(err, &verr) || verr.Code != CodeInsufficient {
		t.Fatalf("expected CodeInsufficient, got %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	txHash := common.HexToHash("0x04")
	req := baseRequirement(t, "0.005", common.Hash{}, time.Now().Add(-time.Second))

	v := NewVerifier(&fakeFetcher{})
	_, err := v.Verify(context.Background(), txHash, req)
	var verr *VerificationError
	if !errors.As(err, &verr) || verr.Code != CodeExpired {
		t.Fatalf("expected CodeExpired, got %v", err)
	}
}

func TestVerifyTxReverted(t *testing.T) {
	txHash := common.HexToHash("0x05")
	req := baseRequirement(t, "0.005", common.Hash{}, time.Now().Add(time.Hour))
	receipt := &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(1)}

	v := NewVerifier(&fakeFetcher{receipts: map[common.Hash]*types.Receipt{txHash: receipt}})
	_, err := v.Verify(context.Background(), txHash, req)
	var verr *VerificationError
	if !errors.As(err, &verr) || verr.Code != CodeTxReverted {
		t.Fatalf("expected CodeTxReverted, got %v", err)
	}
}

func TestVerifyNoMatchingTransfer(t *testing.T) {
	txHash := common.HexToHash("0x06")
	req := baseRequirement(t, "0.005", common.Hash{}, time.Now().Add(time.Hour))
	otherRecipient := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	receipt := successReceipt(transferLog(0, otherRecipient, big.NewInt(5000)))

	v := NewVerifier(&fakeFetcher{receipts: map[common.Hash]*types.Receipt{txHash: receipt}})
	_, err := v.Verify(context.Background(), txHash, req)
	var verr *VerificationError
	if !errors.As(err, &verr) || verr.Code != CodeNoMatchingTransfer {
		t.Fatalf("expected CodeNoMatchingTransfer, got %v", err)
	}
}

func TestVerifyPrefersMemoMatchOverPlainTransfer(t *testing.T) {
	txHash := common.HexToHash("0x07")
	memo := common.HexToHash("0xdead")
	req := baseRequirement(t, "0.005", memo, time.Now().Add(time.Hour))

	receipt := successReceipt(
		transferLog(0, recipient, big.NewInt(5000)),
		transferWithMemoLog(1, recipient, big.NewInt(5000), memo),
	)

	v := NewVerifier(&fakeFetcher{receipts: map[common.Hash]*types.Receipt{txHash: receipt}})
	result, err := v.Verify(context.Background(), txHash, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.LogIndex != 1 {
		t.Errorf("expected the memo log (index 1) to be selected, got index %d", result.LogIndex)
	}
}

func TestVerifyTieBreakEarliestLogIndex(t *testing.T) {
	txHash := common.HexToHash("0x08")
	req := baseRequirement(t, "0.005", common.Hash{}, time.Now().Add(time.Hour))

	receipt := successReceipt(
		transferLog(0, recipient, big.NewInt(5000)),
		transferLog(1, recipient, big.NewInt(6000)),
	)

	v := NewVerifier(&fakeFetcher{receipts: map[common.Hash]*types.Receipt{txHash: receipt}})
	result, err := v.Verify(context.Background(), txHash, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.LogIndex != 0 {
		t.Errorf("expected earliest log index 0 to win tie-break, got %d", result.LogIndex)
	}
}

func TestVerifyPlainTransferAcceptedWithRequirementMemoPermissive(t *testing.T) {
	txHash := common.HexToHash("0x09")
	memo := common.HexToHash("0xdead")
	req := baseRequirement(t, "0.005", memo, time.Now().Add(time.Hour))
	receipt := successReceipt(transferLog(0, recipient, big.NewInt(5000)))

	v := NewVerifier(&fakeFetcher{receipts: map[common.Hash]*types.Receipt{txHash: receipt}})
	if _, err := v.Verify(context.Background(), txHash, req); err != nil {
		t.Fatalf("permissive memo policy should accept memo-less transfer, got: %v", err)
	}
}

func TestVerifyStrictMemoRejectsMissingMemo(t *testing.T) {
	txHash := common.HexToHash("0x0a")
	memo := common.HexToHash("0xdead")
	req := baseRequirement(t, "0.005", memo, time.Now().Add(time.Hour))
	receipt := successReceipt(transferLog(0, recipient, big.NewInt(5000)))

	v := NewVerifier(&fakeFetcher{receipts: map[common.Hash]*types.Receipt{txHash: receipt}})
	v.StrictMemo = true
	_, err := v.Verify(context.Background(), txHash, req)
	var verr *VerificationError
	if !errors.As(err, &verr) || verr.Code != CodeMemoMismatch {
		t.Fatalf("expected CodeMemoMismatch under strict policy, got %v", err)
	}
}

func TestVerifyAllReturnsEveryMatchingLogInIndexOrder(t *testing.T) {
	txHash := common.HexToHash("0x0c")
	req := baseRequirement(t, "0.005", common.Hash{}, time.Now().Add(time.Hour))
	receipt := successReceipt(
		transferLog(0, recipient, big.NewInt(5000)),
		transferLog(1, recipient, big.NewInt(5000)),
		transferLog(2, recipient, big.NewInt(5000)),
	)

	v := NewVerifier(&fakeFetcher{receipts: map[common.Hash]*types.Receipt{txHash: receipt}})
	results, err := v.VerifyAll(context.Background(), txHash, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d candidates, want 3", len(results))
	}
	for i, r := range results {
		if r.LogIndex != uint(i) {
			t.Errorf("results[%d].LogIndex = %d, want %d", i, r.LogIndex, i)
		}
	}
}

func TestVerifyAllExcludesLogsBelowRequiredAmount(t *testing.T) {
	txHash := common.HexToHash("0x0d")
	req := baseRequirement(t, "0.005", common.Hash{}, time.Now().Add(time.Hour))
	receipt := successReceipt(
		transferLog(0, recipient, big.NewInt(4999)),
		transferLog(1, recipient, big.NewInt(5000)),
	)

	v := NewVerifier(&fakeFetcher{receipts: map[common.Hash]*types.Receipt{txHash: receipt}})
	results, err := v.VerifyAll(context.Background(), txHash, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].LogIndex != 1 {
		t.Fatalf("expected only the sufficient log (index 1) to qualify, got %+v", results)
	}
}

func TestVerifyRPCUnavailable(t *testing.T) {
	txHash := common.HexToHash("0x0b")
	req := baseRequirement(t, "0.005", common.Hash{}, time.Now().Add(time.Hour))

	v := NewVerifier(&fakeFetcher{err: errors.New("connection refused")})
	_, err := v.Verify(context.Background(), txHash, req)
	var verr *VerificationError
	if !errors.As(err, &verr) || verr.Code != CodeRPCUnavailable {
		t.Fatalf("expected CodeRPCUnavailable, got %v", err)
	}
}
