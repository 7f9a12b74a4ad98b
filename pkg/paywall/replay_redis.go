package paywall

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisReplayStore backs the used-reference set with Redis, for gateways
// that run more than one instance behind a load balancer. The
// check-and-insert pair is Redis's own SETNX/SET-with-NX, which is atomic
// server-side; TTL is set to the claim's retention window so Redis itself
// expires stale entries (spec §9, "tie it to requirement expiry").
type RedisReplayStore struct {
	client *redis.Client
	prefix string
}

// NewRedisReplayStore wraps an existing *redis.Client. prefix namespaces
// keys (e.g. "agentgate:replay:") so the store can share a Redis instance
// with other data.
func NewRedisReplayStore(client *redis.Client, prefix string) *RedisReplayStore {
	return &RedisReplayStore{client: client, prefix: prefix}
}

func (s *RedisReplayStore) key(ref Reference) string {
	return fmt.Sprintf("%s%s:%d:%d", s.prefix, ref.TxHash.Hex(), ref.ChainID, ref.LogIndex)
}

func (s *RedisReplayStore) Claim(ctx context.Context, ref Reference, expiry time.Time) (bool, error) {
	ttl := time.Until(expiry)
	if ttl <= 0 {
		ttl = time.Minute
	}

	ok, err := s.client.SetNX(ctx, s.key(ref), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("paywall: redis replay claim: %w", err)
	}
	return ok, nil
}
