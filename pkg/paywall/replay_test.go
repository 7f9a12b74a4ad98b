package paywall

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestMemoryReplayStoreClaimIsOneShot(t *testing.T) {
	store := NewMemoryReplayStore()
	ref := Reference{TxHash: common.HexToHash("0x01"), ChainID: 1, LogIndex: 0}
	expiry := time.Now().Add(time.Minute)

	claimed, err := store.Claim(context.Background(), ref, expiry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claimed {
		t.Fatal("first claim should succeed")
	}

	claimed, err = store.Claim(context.Background(), ref, expiry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Fatal("second claim of the same reference should fail")
	}
}

func TestMemoryReplayStoreDistinctLogIndexAreIndependent(t *testing.T) {
	store := NewMemoryReplayStore()
	txHash := common.HexToHash("0x02")
	expiry := time.Now().Add(time.Minute)

	first, _ := store.Claim(context.Background(), Reference{TxHash: txHash, ChainID: 1, LogIndex: 0}, expiry)
	second, _ := store.Claim(context.Background(), Reference{TxHash: txHash, ChainID: 1, LogIndex: 1}, expiry)

	if !first || !second {
		t.Fatal("distinct log indices within the same batch tx must both be claimable")
	}
	if store.Size() != 2 {
		t.Errorf("Size() = %d, want 2", store.Size())
	}
}

func TestMemoryReplayStoreSweepEvictsOnlyExpired(t *testing.T) {
	store := NewMemoryReplayStore()
	past := Reference{TxHash: common.HexToHash("0x03"), ChainID: 1, LogIndex: 0}
	future := Reference{TxHash: common.HexToHash("0x04"), ChainID: 1, LogIndex: 0}

	store.Claim(context.Background(), past, time.Now().Add(-time.Minute))
	store.Claim(context.Background(), future, time.Now().Add(time.Hour))

	store.sweep()

	if store.Size() != 1 {
		t.Fatalf("Size() = %d, want 1 after sweep", store.Size())
	}
	claimed, _ := store.Claim(context.Background(), past, time.Now().Add(time.Minute))
	if !claimed {
		t.Error("expired reference should be reclaimable after eviction")
	}
}
