package paywall

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Reference is the replay-defense key. Keying on (TxHash, LogIndex) rather
// than TxHash alone is the resolution to the batch-vs-replay tension in
// spec §9: a single batch transaction can legitimately settle N distinct
// requests, each bound to its own log record within the receipt.
type Reference struct {
	TxHash   common.Hash
	ChainID  uint64
	LogIndex uint
}

// ReplayStore is the used-reference set. Claim is the single atomic
// check-and-insert operation the middleware relies on: it returns
// claimed=true only for the caller that newly added ref, so that two
// concurrent retries of the same reference never both admit (spec §4.3,
// §5 "exactly one admits").
type ReplayStore interface {
	// Claim attempts to atomically mark ref as used. expiry bounds how
	// long the store must retain the claim — at least until the
	// corresponding requirement's expiry window has passed.
	Claim(ctx context.Context, ref Reference, expiry time.Time) (claimed bool, err error)
}

// MemoryReplayStore is the default, process-local ReplayStore. A single
// mutex guards the check-and-insert pair; no lock is ever held across an
// RPC or other suspension point (spec §5, "locking discipline").
type MemoryReplayStore struct {
	mu      sync.Mutex
	claimed map[Reference]time.Time
}

// NewMemoryReplayStore constructs an empty in-memory replay store.
func NewMemoryReplayStore() *MemoryReplayStore {
	return &MemoryReplayStore{claimed: make(map[Reference]time.Time)}
}

func (s *MemoryReplayStore) Claim(_ context.Context, ref Reference, expiry time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.claimed[ref]; exists {
		return false, nil
	}
	s.claimed[ref] = expiry
	return true, nil
}

// StartSweeper launches a background goroutine that evicts claims whose
// expiry has passed, at the given interval. The used-reference set
// invariant (spec §3, "never removed unless the corresponding requirement
// has provably expired") is preserved: only entries past their own
// recorded expiry are evicted.
func (s *MemoryReplayStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *MemoryReplayStore) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for ref, expiry := range s.claimed {
		if now.After(expiry) {
			delete(s.claimed, ref)
		}
	}
}

// Size reports the current number of claimed references, for tests and
// introspection.
func (s *MemoryReplayStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claimed)
}
