package paywall

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// RecentSettlementCapacity bounds the ring buffer of recently accepted
// settlements kept for introspection (spec §3, "N ≈ 100").
const RecentSettlementCapacity = 100

// Settlement is one accepted payment, recorded after the used-reference
// set claim and before the downstream handler runs.
type Settlement struct {
	Reference Reference
	From      common.Address
	Endpoint  string
	Amount    decimal.Decimal
	At        time.Time
}

// RevenueSnapshot is a point-in-time, race-free read of RevenueCounters.
type RevenueSnapshot struct {
	RequestCount   uint64
	PaidCount      uint64
	CumulativeAmount decimal.Decimal
	Recent         []Settlement
}

// RevenueCounters are operational, not protocol-critical (spec §3):
// totals plus a bounded ring buffer of the most recent accepted
// settlements. The middleware calls RecordRequest for every priced request
// and RecordSettlement for each admitted settlement, just before it
// invokes the payment-observed hook.
type RevenueCounters struct {
	mu               sync.RWMutex
	requestCount     uint64
	paidCount        uint64
	cumulativeAmount decimal.Decimal
	recent           []Settlement
	nextIndex        int
}

// NewRevenueCounters constructs an empty counter set with the standard
// ring-buffer capacity.
func NewRevenueCounters() *RevenueCounters {
	return &RevenueCounters{
		cumulativeAmount: decimal.Zero,
		recent:           make([]Settlement, 0, RecentSettlementCapacity),
	}
}

// RecordRequest increments the total request count. Called once per
// request that hits a priced endpoint, regardless of outcome.
func (r *RevenueCounters) RecordRequest() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCount++
}

// RecordSettlement records one accepted payment, appending it to the ring
// buffer and updating totals.
func (r *RevenueCounters) RecordSettlement(s Settlement) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.paidCount++
	r.cumulativeAmount = r.cumulativeAmount.Add(s.Amount)

	if len(r.recent) < RecentSettlementCapacity {
		r.recent = append(r.recent, s)
	} else {
		r.recent[r.nextIndex] = s
		r.nextIndex = (r.nextIndex + 1) % RecentSettlementCapacity
	}
}

// Snapshot returns a defensive copy of the counters for introspection
// endpoints.
func (r *RevenueCounters) Snapshot() RevenueSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recent := make([]Settlement, len(r.recent))
	copy(recent, r.recent)

	return RevenueSnapshot{
		RequestCount:     r.requestCount,
		PaidCount:        r.paidCount,
		CumulativeAmount: r.cumulativeAmount,
		Recent:           recent,
	}
}
