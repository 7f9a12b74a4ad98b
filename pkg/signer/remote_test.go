package signer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"context"

	"github.com/ethereum/go-ethereum/common"
	"math/big"
)

func TestRemoteSignerSubmitTransfer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			t.Error("expected basic auth header")
		}
		var body transferRequest
		json.NewDecoder(r.Body).Decode(&body)
		if body.Amount != "1000" {
			t.Errorf("Amount = %q, want 1000", body.Amount)
		}
		json.NewEncoder(w).Encode(transferResponse{TxHash: "0xdeadbeef"})
	}))
	defer srv.Close()

	s := NewRemoteSigner(srv.URL, "app-id", "app-secret", "wallet-1", common.HexToAddress("0xcafe"))

	txHash, err := s.SubmitTransfer(context.Background(), Transfer{
		Token:     common.HexToAddress("0xaaaa"),
		Recipient: common.HexToAddress("0xbbbb"),
		Amount:    big.NewInt(1000),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if txHash != common.HexToHash("0xdeadbeef") {
		t.Errorf("txHash = %s, want 0xdeadbeef", txHash.Hex())
	}
}

func TestRemoteSignerRetriesWithoutSponsorshipOnRejection(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body transferRequest
		json.NewDecoder(r.Body).Decode(&body)
		if body.SponsorFees {
			json.NewEncoder(w).Encode(transferResponse{Error: sponsorshipRejected})
			return
		}
		json.NewEncoder(w).Encode(transferResponse{TxHash: "0x01"})
	}))
	defer srv.Close()

	s := NewRemoteSigner(srv.URL, "app-id", "app-secret", "wallet-1", common.HexToAddress("0xcafe"), WithSponsorFees())

	txHash, err := s.SubmitTransfer(context.Background(), Transfer{
		Token:     common.HexToAddress("0xaaaa"),
		Recipient: common.HexToAddress("0xbbbb"),
		Amount:    big.NewInt(1000),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls (sponsored then unsponsored), got %d", calls)
	}
	if txHash != common.HexToHash("0x01") {
		t.Errorf("txHash = %s, want 0x01", txHash.Hex())
	}
}

func TestRemoteSignerSupportsBatchIsFalse(t *testing.T) {
	s := NewRemoteSigner("http://example.invalid", "a", "b", "w", common.Address{})
	if s.SupportsBatch() {
		t.Fatal("remote custody signer must not support batching")
	}
	if _, err := s.SubmitBatch(context.Background(), nil); err != ErrBatchUnsupported {
		t.Fatalf("expected ErrBatchUnsupported, got %v", err)
	}
}

func TestRemoteSignerGetBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(balanceResponse{Balance: "42000000"})
	}))
	defer srv.Close()

	s := NewRemoteSigner(srv.URL, "app-id", "app-secret", "wallet-1", common.HexToAddress("0xcafe"))
	balance, err := s.GetBalance(context.Background(), common.HexToAddress("0xaaaa"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance.Cmp(big.NewInt(42000000)) != 0 {
		t.Errorf("balance = %s, want 42000000", balance)
	}
}
