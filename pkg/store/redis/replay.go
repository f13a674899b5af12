package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayStore implements the replay guard's keyed test-and-set on redis.
// SET NX with a TTL is a single atomic operation, so concurrent
// deliveries of the same webhook race on one redis command and exactly
// one wins; keys expire with the replay window and the store stays
// bounded.
type ReplayStore struct {
	rdb redis.UniversalClient
}

func NewReplayStore(client *Client) *ReplayStore {
	return &ReplayStore{rdb: client.Client()}
}

func (s *ReplayStore) AcceptOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, 1, ttl).Result()
}
