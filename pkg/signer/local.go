package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ChainClient is the narrow surface the local signer needs from an RPC
// client. *ethclient.Client satisfies it directly.
type ChainClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// LocalSigner holds a private key in memory and submits transactions
// directly against the configured RPC endpoint (spec §4.4, "Local key
// signer"). It supports batching, since a single account can atomically
// submit one transaction that fans out to many recipients.
type LocalSigner struct {
	client     ChainClient
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	gasLimit   uint64

	// pollInterval governs how often SubmitTransfer polls for a receipt.
	// Overridable for tests.
	pollInterval time.Duration
}

// NewLocalSigner constructs a LocalSigner from a hex-encoded private key
// (with or without the "0x" prefix).
func NewLocalSigner(client ChainClient, privateKeyHex string, chainID *big.Int) (*LocalSigner, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("signer: invalid private key: %w", err)
	}
	return &LocalSigner{
		client:       client,
		privateKey:   key,
		address:      crypto.PubkeyToAddress(key.PublicKey),
		chainID:      chainID,
		gasLimit:     120_000,
		pollInterval: 500 * time.Millisecond,
	}, nil
}

func (s *LocalSigner) ResolveAddress() common.Address {
	return s.address
}

func (s *LocalSigner) GetBalance(ctx context.Context, token common.Address) (*big.Int, error) {
	data := packBalanceOf(s.address)
	result, err := s.client.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("signer: balanceOf call failed: %w", err)
	}
	return unpackUint256(result), nil
}

func (s *LocalSigner) SubmitTransfer(ctx context.Context, t Transfer) (common.Hash, error) {
	var data []byte
	if t.Memo != nil {
		data = packTransferWithMemo(t.Recipient, t.Amount, *t.Memo)
	} else {
		data = packTransfer(t.Recipient, t.Amount)
	}
	return s.submit(ctx, t.Token, data)
}

func (s *LocalSigner) SupportsBatch() bool {
	return true
}

func (s *LocalSigner) SubmitBatch(ctx context.Context, transfers []Transfer) (common.Hash, error) {
	if len(transfers) == 0 {
		return common.Hash{}, fmt.Errorf("signer: batch submission requires at least one transfer")
	}
	token := transfers[0].Token
	for _, t := range transfers {
		if t.Token != token {
			return common.Hash{}, fmt.Errorf("signer: batch submission requires a single token contract")
		}
	}
	data := packBatchTransferWithMemo(transfers)
	return s.submit(ctx, token, data)
}

// submit builds, signs and sends a transaction calling contract with
// data, then polls for a receipt so the returned hash is already
// confirmed at least once (spec §4.4, "awaits at least one confirmation
// before returning").
func (s *LocalSigner) submit(ctx context.Context, contract common.Address, data []byte) (common.Hash, error) {
	nonce, err := s.client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signer: fetch nonce: %w", err)
	}
	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signer: suggest gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &contract,
		Value:    big.NewInt(0),
		Gas:      s.gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.NewEIP155Signer(s.chainID), s.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signer: sign transaction: %w", err)
	}

	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("signer: send transaction: %w", err)
	}

	return s.awaitConfirmation(ctx, signed.Hash())
}

func (s *LocalSigner) awaitConfirmation(ctx context.Context, txHash common.Hash) (common.Hash, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.client.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return txHash, nil
		}
		select {
		case <-ctx.Done():
			return common.Hash{}, fmt.Errorf("signer: context cancelled awaiting confirmation: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
