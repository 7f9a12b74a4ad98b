package paywall

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

func TestRevenueCountersAccumulate(t *testing.T) {
	counters := NewRevenueCounters()
	counters.RecordRequest()
	counters.RecordRequest()
	counters.RecordSettlement(Settlement{
		Reference: Reference{TxHash: common.HexToHash("0x01"), ChainID: 1, LogIndex: 0},
		Amount:    decimal.RequireFromString("0.01"),
		At:        time.Now(),
	})

	snap := counters.Snapshot()
	if snap.RequestCount != 2 {
		t.Errorf("RequestCount = %d, want 2", snap.RequestCount)
	}
	if snap.PaidCount != 1 {
		t.Errorf("PaidCount = %d, want 1", snap.PaidCount)
	}
	if !snap.CumulativeAmount.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("CumulativeAmount = %s, want 0.01", snap.CumulativeAmount)
	}
}

func TestRevenueCountersRingBufferWraps(t *testing.T) {
	counters := NewRevenueCounters()
	for i := 0; i < RecentSettlementCapacity+10; i++ {
		counters.RecordSettlement(Settlement{
			Reference: Reference{TxHash: common.BigToHash(common.Big1), ChainID: 1, LogIndex: uint(i)},
			Amount:    decimal.RequireFromString("0.01"),
			At:        time.Now(),
		})
	}

	snap := counters.Snapshot()
	if len(snap.Recent) != RecentSettlementCapacity {
		t.Fatalf("len(Recent) = %d, want %d", len(snap.Recent), RecentSettlementCapacity)
	}
	if snap.PaidCount != uint64(RecentSettlementCapacity+10) {
		t.Errorf("PaidCount = %d, want %d", snap.PaidCount, RecentSettlementCapacity+10)
	}
}
